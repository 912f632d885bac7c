package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Policy is a fixed window: at most Limit hits per Window for one subject.
// A Limit of zero or less disables the policy.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func PerMinute(name string, limit int) Policy {
	return Policy{Name: name, Limit: limit, Window: time.Minute}
}

func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

type Limiter struct {
	store WindowStore
}

func NewLimiter(store WindowStore) *Limiter {
	return &Limiter{store: store}
}

// Allow counts one hit of subject against policy. When the window is
// exhausted it reports the seconds left until the window resets.
func (l *Limiter) Allow(ctx context.Context, policy Policy, subject string) (int64, bool, error) {
	if !policy.Enabled() {
		return 0, true, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0, false, fmt.Errorf("invalid rate subject")
	}
	if l == nil || l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, windowKey(policy.Name, subject), policy.Window)
	if err != nil {
		return 0, false, err
	}
	if count > int64(policy.Limit) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func windowKey(name, subject string) string {
	return name + ":" + subject
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}
