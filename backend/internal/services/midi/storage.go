package midi

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored file. Key is slash separated and relative to
// the storage root.
type ObjectInfo struct {
	Key     string
	Name    string
	Size    int64
	ModTime time.Time
}

type ObjectStorage interface {
	Name() string
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, suffix string, limit int) ([]ObjectInfo, error)
}
