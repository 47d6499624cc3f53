// Package storage is the object-storage layer for product images.
//
// Two drivers are available:
//   - "local" — a directory on disk, served by the HTTP kernel under /storage
//   - "s3"    — S3-compatible object storage (AWS S3, MinIO, R2, Supabase S3)
//
// Both write into a single bucket and expose blobs under a public URL base:
//
//	storage.Connect(ctx)
//	err := storage.Default().Put(ctx, "products/n8n-1700000000000-k3j9x0a1b2.webp", data,
//	    storage.PutOptions{ContentType: "image/webp", CacheControl: "max-age=3600"})
//	url := storage.Default().URL("products/n8n-1700000000000-k3j9x0a1b2.webp")
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	// ErrExists is returned by Put when the key is taken and Overwrite is false.
	ErrExists = errors.New("storage: object already exists")
	// ErrInvalidKey rejects empty, absolute or dot-segment keys.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// PutOptions controls a single write.
type PutOptions struct {
	ContentType  string
	CacheControl string
	// Overwrite allows replacing an existing object. When false the write is
	// conditional and fails with ErrExists on collision.
	Overwrite bool
}

// Object is one entry returned by List.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Disk is the driver interface.
type Disk interface {
	Put(ctx context.Context, key string, content []byte, opts PutOptions) error
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// URL returns the anonymous public URL of key.
	URL(key string) string

	// KeyFor is the inverse of URL: it reports the key behind a public URL,
	// or false when the URL is outside this disk's namespace.
	KeyFor(url string) (string, bool)
}

// cleanKey validates and normalises an object key.
func cleanKey(key string) (string, error) {
	k := strings.TrimLeft(key, "/")
	if k == "" || strings.Contains(k, "\\") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(k), nil
}

// keyFromURL strips base (without trailing slash) from url.
func keyFromURL(base, url string) (string, bool) {
	if base == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(url, base+"/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	k, err := cleanKey(rest)
	if err != nil {
		return "", false
	}
	return k, true
}

// ContentTypeFor maps a key's extension to the image type it was stored with.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
