package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for binary object storage. The relay
// uses it to hold image attachments; everything else about an image is
// just the URL persisted on the message.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key.
	Delete(ctx context.Context, key string) error

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL for accessing the content.
	// For local storage this is a path under the public base URL.
	// For S3 this is a presigned URL valid for the specified duration,
	// or a public URL when the bucket is fronted by one.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
