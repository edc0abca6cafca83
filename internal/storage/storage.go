// Package storage holds uploaded photo bytes, either in a local directory or
// in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/fpang/swipe-story/internal/triage"
)

// ErrNotExist is returned (wrapped) by Open for a missing key.
var ErrNotExist = fs.ErrNotExist

// ErrInvalidKey is returned for keys that are empty, absolute, or escape the
// store root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is a flat key/value blob store. Keys use forward slashes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL returns a direct download URL for key, or "" if the store cannot
	// serve blobs itself and callers should stream them through Open.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Tagger is implemented by stores that can label a blob with its triage
// outcome, so lifecycle rules can act on it.
type Tagger interface {
	Tag(ctx context.Context, key string, tag triage.Tag) error
}

// TagDecision labels key with tag if s supports tagging. Stores without
// tagging are a no-op.
func TagDecision(ctx context.Context, s Store, key string, tag triage.Tag) error {
	t, ok := s.(Tagger)
	if !ok {
		return nil
	}
	return t.Tag(ctx, key, tag)
}
