package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; -1 lets the backend
// buffer and chunk as it supports.
type PutObjectOptions struct {
	Size        int64
	ContentType string
}

// Storage is an S3-compatible object store for document blobs. Get hands the
// ingestion pipeline a readable stream; PresignGet produces a time-limited
// URL for client-side preview without exposing credentials.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
