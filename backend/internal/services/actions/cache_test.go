package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingLoader(calls *atomic.Int64, records ...Record) Loader {
	return func(context.Context) ([]Record, int, error) {
		calls.Add(1)
		return records, 0, nil
	}
}

func TestCacheServesSnapshotWithinTTL(t *testing.T) {
	var calls atomic.Int64
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewCache(countingLoader(&calls, Record{UserID: 1, Action: "a"}), time.Minute)
	cache.now = clock.Now

	for i := 0; i < 3; i++ {
		snap, err := cache.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if len(snap.Records) != 1 {
			t.Fatalf("unexpected records: %d", len(snap.Records))
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one load within ttl, got %d", calls.Load())
	}

	clock.Advance(time.Minute)
	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after ttl: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", calls.Load())
	}

	cache.Invalidate()
	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after invalidate: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected reload after invalidate, got %d loads", calls.Load())
	}
}

func TestCacheCollapsesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	cache := NewCache(func(context.Context) ([]Record, int, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []Record{{UserID: 7, Action: "convert"}}, 0, nil
	}, time.Minute)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Snapshot(context.Background())
			if err == nil && len(snap.Records) != 1 {
				err = errors.New("caller observed an empty snapshot")
			}
			errs <- err
		}()
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", calls.Load())
	}
}

func TestCacheKeepsPreviousSnapshotOnFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	fail := false
	cache := NewCache(func(context.Context) ([]Record, int, error) {
		if fail {
			return nil, 0, errors.New("disk error")
		}
		return []Record{{UserID: 1, Action: "a"}}, 0, nil
	}, time.Minute)
	cache.now = clock.Now

	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}

	fail = true
	clock.Advance(2 * time.Minute)
	snap, err := cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("failed reload must fall back to previous snapshot: %v", err)
	}
	if len(snap.Records) != 1 {
		t.Fatalf("unexpected fallback snapshot: %+v", snap)
	}
}

func TestCacheFailsWithoutSnapshot(t *testing.T) {
	cache := NewCache(func(context.Context) ([]Record, int, error) {
		return nil, 0, errors.New("disk error")
	}, 0)
	if _, err := cache.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected error without a previous snapshot")
	}
	if cache.ttl != DefaultCacheTTL {
		t.Fatalf("unexpected default ttl: %s", cache.ttl)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actions.log")

	records, skipped, err := FileLoader(path)(context.Background())
	if err != nil || len(records) != 0 || skipped != 0 {
		t.Fatalf("missing log must load as empty: records=%d skipped=%d err=%v", len(records), skipped, err)
	}

	content := "2024-05-01 10:00:00 | user=1 | action=start\nbroken\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	records, skipped, err = FileLoader(path)(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || skipped != 1 {
		t.Fatalf("unexpected load: records=%d skipped=%d", len(records), skipped)
	}
}
