package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrInvalidKey is returned for keys that could escape their namespace
var ErrInvalidKey = errors.New("invalid record key")

// Backend is the primitive record store shared by all components
type Backend interface {
	// EnsureNamespace prepares storage for keys below prefix. Idempotent.
	EnsureNamespace(ctx context.Context, prefix string) error

	// Exists reports whether a record is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the record stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put atomically creates or replaces the record under key.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent stores value only if no record exists under key.
	// Reports whether the value was written.
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Delete removes the record under key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// List returns the keys directly or indirectly below prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the backend.
	Close() error
}

// validateKey rejects empty, absolute and traversing keys
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if strings.ContainsAny(part, "\\\x00") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
