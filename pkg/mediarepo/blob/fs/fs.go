package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-media/pkg/mediarepo/blob"
)

// Backend is a filesystem implementation of the blob.Store interface
type Backend struct {
	baseDir string
}

// Config roots the backend at BaseDir. Keys map to slash separated paths
// below it.
type Config struct {
	BaseDir string
}

// New creates a new filesystem blob backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("fs: base dir is required")
	}
	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("fs: resolve base dir: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("fs: create base dir: %w", err)
	}
	return &Backend{baseDir: baseDir}, nil
}

// resolve maps a key to a file below baseDir, rejecting keys that escape it
func (b *Backend) resolve(key string) (string, error) {
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p == b.baseDir || !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("fs: key %q escapes base dir", key)
	}
	return p, nil
}

// Put writes the object to a temporary file and renames it into place
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params blob.PutParams) error {
	filePath, err := b.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("fs: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("fs: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("fs: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fs: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("fs: move file into place: %w", err)
	}
	return nil
}

// Get opens the object file
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("fs: open: %w", err)
	}
	return file, nil
}

// Delete removes the object file and empty parent directories
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	} else if err != nil {
		return fmt.Errorf("fs: remove: %w", err)
	}
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Stat returns object metadata; the content type is sniffed from the first bytes
func (b *Backend) Stat(ctx context.Context, key string) (*blob.ObjectMeta, error) {
	filePath, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("fs: stat: %w", err)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &blob.ObjectMeta{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// cleanupEmptyDirectories removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
