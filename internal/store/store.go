package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrNotExist reports that a location has no content. Both backends
// normalize their own not-found errors to wrap this sentinel.
var ErrNotExist = errors.New("no such file")

// Store is a byte store a manifest can read from and write to. Paths
// are slash-separated; for Local they are regular filesystem paths,
// for S3 they are object keys within the bucket.
type Store interface {
	// Open returns a reader over the content at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create returns a writer that replaces the content at path,
	// creating parents as needed. Content is visible after Close.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether path holds content or is a directory.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the content at path. Deleting an absent path
	// returns an error wrapping ErrNotExist.
	Delete(ctx context.Context, path string) error

	// List returns the files under root recursively, as sorted
	// slash-separated paths relative to root.
	List(ctx context.Context, root string) ([]string, error)

	// IsFile reports whether path is a regular file.
	IsFile(ctx context.Context, path string) (bool, error)

	// IsDir reports whether path is a directory.
	IsDir(ctx context.Context, path string) (bool, error)
}

// SplitS3URL splits an s3://bucket/key location. ok is false for
// anything that is not an s3 URL.
func SplitS3URL(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, bucket != ""
}

// Resolver maps locations to the store that owns them. Plain paths go
// to a shared Local store; s3:// URLs get a per-bucket S3 store built
// lazily from the resolver's options.
type Resolver struct {
	opts  S3Options
	local *Local

	mu      sync.Mutex
	buckets map[string]*S3
}

func NewResolver(opts S3Options) *Resolver {
	return &Resolver{
		opts:    opts,
		local:   NewLocal(),
		buckets: make(map[string]*S3),
	}
}

// Resolve returns the store for location and the path within it.
func (r *Resolver) Resolve(ctx context.Context, location string) (Store, string, error) {
	bucket, key, ok := SplitS3URL(location)
	if !ok {
		return r.local, location, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s3Store, found := r.buckets[bucket]
	if !found {
		var err error
		s3Store, err = NewS3(ctx, bucket, r.opts)
		if err != nil {
			return nil, "", err
		}
		r.buckets[bucket] = s3Store
	}
	return s3Store, key, nil
}
