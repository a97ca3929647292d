// Package blob stores cover images outside the record store. Stores are
// addressed by opaque keys only; callers must not assume directory semantics.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// CoverPrefix is the key namespace for todo covers.
const CoverPrefix = "covers"

// ErrInvalidKey is returned for keys that could escape the store namespace.
var ErrInvalidKey = errors.New("invalid blob key")

// Object is a blob to be stored.
type Object struct {
	Data        []byte
	ContentType string
	// Ext is the file extension including the dot, e.g. ".png".
	Ext string
}

// Store puts and deletes blobs. Put picks a fresh key for every call.
// Deleting a key that does not exist is not an error.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public location of key.
	URL(key string) string
}

// NewKey returns a fresh key under prefix, e.g. "covers/5b1c....png".
func NewKey(prefix, ext string) string {
	return path.Join(prefix, uuid.NewString()+ext)
}

// validateKey rejects empty, absolute and parent-relative keys.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// joinURL appends key to base with exactly one slash between them.
func joinURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
