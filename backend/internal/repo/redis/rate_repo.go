package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const ratePrefix = "rate:"

// NewClient returns nil when addr is empty; callers treat a nil client as
// "redis not configured".
func NewClient(addr, password string, db int) *goredis.Client {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// windowScript increments a fixed window counter and returns the count with
// the remaining lifetime in milliseconds. A counter that lost its expiry is
// given a fresh window.
const windowScript = `
local count = redis.call("INCR", KEYS[1])
local window = tonumber(ARGV[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], window)
	return {count, window}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], window)
	ttl = window
end
return {count, ttl}
`

type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

// IncrementWindow bumps the counter of a fixed window and returns the new
// count with the time left in the window.
func (r *RateRepo) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window < time.Millisecond {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	res, err := r.client.Eval(ctx, windowScript, []string{ratePrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("eval rate window script: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate window reply: %v", res)
	}

	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
