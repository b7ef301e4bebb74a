// Package kvstore provides the shared key-value store that backs the rate
// limiter's counters. Backends expose plain get/put-with-ttl/delete; Guarded
// adds the per-operation timeout and folds every backend fault into
// ErrUnavailable.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrUnavailable marks any failure of the underlying store: timeouts,
	// connection errors, panics inside a backend.
	ErrUnavailable = errors.New("kvstore: store unavailable")
)

// Store is a key-value store with per-key TTL. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key. The entry expires after ttl.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Callers treat it as best effort.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
