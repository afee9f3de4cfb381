package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when the object does not exist.
var ErrNotFound = errors.New("object not found")

// SaveResult describes a stored object.
type SaveResult struct {
	Key    string
	URL    string
	Size   int64
	SHA256 string
}

// BlobStore stores uploaded images and maps keys to public URLs.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Save writes r under key, overwriting any previous object.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (*SaveResult, error)

	// Open returns the object content. Missing objects yield ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns the public URL of key.
	URL(key string) string

	// KeyFromURL resolves a public URL (or a bare key) back to a safe key.
	// It never touches the backing store.
	KeyFromURL(urlOrKey string) (string, error)

	// Delete removes key. Deleting a missing object succeeds.
	Delete(ctx context.Context, key string) error
}
