package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/repo/redis"
)

func TestLimiterBlocksAfterLimit(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client))
	policy := Policy{Name: "auth", Limit: 2, Window: 10 * time.Second}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.Allow(ctx, policy, "203.0.113.7")
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, policy, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third hit in window")
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}

	if _, allowed, err := limiter.Allow(ctx, policy, "198.51.100.1"); err != nil || !allowed {
		t.Fatalf("other subjects must not share the window: allowed=%v err=%v", allowed, err)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.Allow(ctx, policy, "203.0.113.7")
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("expected reset after window, got allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterPoliciesAreIndependent(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client))
	ctx := context.Background()

	if _, allowed, _ := limiter.Allow(ctx, PerMinute("upload", 1), "ip"); !allowed {
		t.Fatalf("first upload must pass")
	}
	if _, allowed, _ := limiter.Allow(ctx, PerMinute("upload", 1), "ip"); allowed {
		t.Fatalf("second upload must be blocked")
	}
	if _, allowed, _ := limiter.Allow(ctx, PerMinute("auth", 1), "ip"); !allowed {
		t.Fatalf("auth policy must have its own window")
	}
}

func TestLimiterDisabledPolicySkipsStore(t *testing.T) {
	limiter := NewLimiter(nil)
	_, allowed, err := limiter.Allow(context.Background(), PerMinute("auth", 0), "ip")
	if err != nil || !allowed {
		t.Fatalf("disabled policy must allow without a store: allowed=%v err=%v", allowed, err)
	}

	if _, _, err := limiter.Allow(context.Background(), PerMinute("auth", 5), "ip"); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

type failingStore struct{}

func (failingStore) IncrementWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestLimiterReturnsStoreErrors(t *testing.T) {
	limiter := NewLimiter(failingStore{})
	if _, allowed, err := limiter.Allow(context.Background(), PerMinute("auth", 5), "ip"); err == nil || allowed {
		t.Fatalf("expected store error, got allowed=%v err=%v", allowed, err)
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       1,
		500 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range cases {
		if got := ceilSeconds(in); got != want {
			t.Fatalf("ceilSeconds(%s)=%d want %d", in, got, want)
		}
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
