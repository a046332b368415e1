// Package objectstore talks to tenant-owned S3 buckets. Clients are built per
// request from resolved credentials; no bucket credential outlives the request
// that needed it.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Object is a streamed S3 object. Callers own Body and must close it.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Client is the object storage surface the handlers need: issuing upload
// URLs, probing uploads, and streaming playback objects.
type Client interface {
	PresignPut(ctx context.Context, key, contentType string, contentLength int64, expiry time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (Object, error)
}

// Factory builds a Client for one set of bucket credentials.
type Factory interface {
	New(ctx context.Context, cfg Config) (Client, error)
}

// Config carries everything needed to open one bucket.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the S3 endpoint for MinIO and other S3-compatible
	// stores; path-style addressing is forced when set.
	Endpoint string
}
