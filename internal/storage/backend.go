// Package storage moves artifacts between the pipeline and the object
// stores: an S3-compatible primary with a filesystem-backed secondary,
// retried uploads/downloads, signed URLs and the local output mirror.
package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the object-store contract shared by the primary and the
// secondary store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Download(ctx context.Context, key string, dst io.Writer) error
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	Name() string
}
