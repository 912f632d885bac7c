package actions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 5 * time.Minute

type Loader func(ctx context.Context) ([]Record, int, error)

type Snapshot struct {
	Records  []Record
	Skipped  int
	LoadedAt time.Time
}

// Cache holds the parsed action log for a TTL. Concurrent refreshes share a
// single load; a failed load keeps serving the previous snapshot.
type Cache struct {
	load Loader
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

func NewCache(load Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		load: load,
		ttl:  ttl,
		now:  time.Now,
	}
}

// FileLoader reads the log at path. A missing file is an empty log.
func FileLoader(path string) Loader {
	return func(_ context.Context) ([]Record, int, error) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, 0, nil
			}
			return nil, 0, fmt.Errorf("open action log: %w", err)
		}
		defer f.Close()

		records, skipped, err := Parse(f)
		if err != nil {
			return nil, 0, fmt.Errorf("read action log: %w", err)
		}
		return records, skipped, nil
	}
}

func (c *Cache) current() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, false
	}
	return c.snap, c.now().Sub(c.snap.LoadedAt) < c.ttl
}

func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	prev, fresh := c.current()
	if fresh {
		return *prev, nil
	}

	v, err, _ := c.group.Do("snapshot", func() (any, error) {
		if snap, fresh := c.current(); fresh {
			return snap, nil
		}

		records, skipped, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		snap := &Snapshot{Records: records, Skipped: skipped, LoadedAt: c.now()}
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		if prev != nil {
			return *prev, nil
		}
		return Snapshot{}, err
	}

	return *v.(*Snapshot), nil
}

// Invalidate forces the next Snapshot call to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	if c.snap != nil {
		stale := *c.snap
		stale.LoadedAt = time.Time{}
		c.snap = &stale
	}
	c.mu.Unlock()
}
