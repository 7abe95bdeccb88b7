// Package storage holds report documents, exported feeds and incident
// backups in JetStream object store buckets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Scheme prefixes every object URI.
const Scheme = "nats://"

// Restore layout inside a bucket.
const (
	BackupPrefix   = "backups/"
	RestoredPrefix = "restored/"
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore is implemented by NATSObjectStore and storagetest.Memory.
// Missing objects are reported as *models.NotFoundError.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, bucket, path string) (Object, error)
	// Restore copies backups/<path> to restored/<path> and returns the new URI.
	Restore(ctx context.Context, bucket, path string) (string, error)
}

// URI formats a bucket and path as an object URI.
func URI(bucket, path string) string {
	return Scheme + bucket + "/" + strings.TrimPrefix(path, "/")
}

// ParseURI splits an object URI into bucket and path.
func ParseURI(uri string) (bucket, path string, err error) {
	rest, ok := strings.CutPrefix(uri, Scheme)
	if !ok {
		return "", "", fmt.Errorf("object uri %q: missing %s scheme", uri, Scheme)
	}
	bucket, path, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		return "", "", fmt.Errorf("object uri %q: expected %sbucket/path", uri, Scheme)
	}
	return bucket, path, nil
}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("object store not configured")

// Unavailable is used when NATS is not configured.
type Unavailable struct{}

func (Unavailable) Upload(context.Context, string, string, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unavailable) Download(context.Context, string, string) (Object, error) {
	return Object{}, ErrNotConfigured
}

func (Unavailable) Restore(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}
