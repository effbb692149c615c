// Package blob defines the store binary property payloads can be offloaded
// to. Implementations live in the memory, fs and s3 subpackages.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates a missing object
var ErrNotFound = errors.New("object not found")

// Store defines the interface for binary payload backends
type Store interface {
	// Put stores the content of reader under key, replacing any existing object
	Put(ctx context.Context, key string, reader io.Reader, params PutParams) error

	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key
	Delete(ctx context.Context, key string) error

	// Stat returns metadata of the object stored under key
	Stat(ctx context.Context, key string) (*ObjectMeta, error)
}

// PutParams carries optional object attributes
type PutParams struct {
	ContentType string
	Size        int64
}

// ObjectMeta contains metadata about a stored object
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// ReadAll fetches the whole object stored under key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
