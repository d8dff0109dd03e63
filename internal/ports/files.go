package ports

import (
	"context"
	"errors"
	"io"
)

var ErrFileNotFound = errors.New("stored file not found")

// FileStore keeps uploaded files under opaque keys.
type FileStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
