package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-media/pkg/mediarepo/blob"
)

const defaultContentType = "application/octet-stream"

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the blob.Store interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory blob backend
func New() *Backend {
	return &Backend{objects: make(map[string]object)}
}

// Put stores the content of reader under key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params blob.PutParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	contentType := params.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: contentType, updatedAt: time.Now().UTC()}
	return nil
}

// Get returns a reader over a copy of the stored object
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// Delete removes an object
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	delete(b.objects, key)
	return nil
}

// Stat returns object metadata
func (b *Backend) Stat(ctx context.Context, key string) (*blob.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return &blob.ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
