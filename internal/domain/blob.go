package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one exported object, such as an archived bet or a
// registry snapshot.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter stores archive objects. PutMultipart is used for snapshots,
// whose size grows with the number of bets.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader reads archive objects back. Get returns ErrNotFound for a
// missing path; Exists reports it as false instead.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}
