package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultOpTimeout bounds a single store operation when Guarded is given a
// non-positive timeout.
const DefaultOpTimeout = 25 * time.Millisecond

// GuardedStore enforces a deadline on every operation of the wrapped store and
// reports all failures other than ErrNotFound as ErrUnavailable. A backend
// that ignores its context still cannot hold a caller past the deadline.
type GuardedStore struct {
	store   Store
	timeout time.Duration
}

// Guarded wraps store with a per-operation timeout.
func Guarded(store Store, timeout time.Duration) *GuardedStore {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &GuardedStore{store: store, timeout: timeout}
}

func (g *GuardedStore) Get(ctx context.Context, key string) (string, error) {
	val, err := run(ctx, g.timeout, func(ctx context.Context) (string, error) {
		return g.store.Get(ctx, key)
	})
	if err == nil {
		return val, nil
	}
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	return "", unavailable("get", key, err)
}

func (g *GuardedStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := run(ctx, g.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.Put(ctx, key, value, ttl)
	})
	if err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

// Delete never fails; errors are logged at debug level.
func (g *GuardedStore) Delete(ctx context.Context, key string) error {
	_, err := run(ctx, g.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.Delete(ctx, key)
	})
	if err != nil {
		slog.Debug("kvstore delete failed", "key", key, "error", err)
	}
	return nil
}

func (g *GuardedStore) Close() error {
	return g.store.Close()
}

type result[T any] struct {
	val T
	err error
}

// run executes op in its own goroutine and waits for it or the deadline,
// whichever comes first. A panic inside op becomes an error.
func run[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				done <- result[T]{val: zero, err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		val, err := op(ctx)
		done <- result[T]{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func unavailable(op, key string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("kvstore %s %q: %w", op, key, err)
	}
	return fmt.Errorf("kvstore %s %q: %w: %w", op, key, ErrUnavailable, err)
}
