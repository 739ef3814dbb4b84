package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Read when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Storage holds raw attachment bytes addressed by a server-generated key.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
