package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore lets each test decide how the backend misbehaves.
type stubStore struct {
	get    func(ctx context.Context, key string) (string, error)
	put    func(ctx context.Context, key, value string, ttl time.Duration) error
	delete func(ctx context.Context, key string) error
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	return s.get(ctx, key)
}

func (s *stubStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.put(ctx, key, value, ttl)
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	return s.delete(ctx, key)
}

func (s *stubStore) Close() error { return nil }

func blockForever(release <-chan struct{}) {
	<-release
}

func TestGuarded_PassesThrough(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	g := Guarded(m, 0)
	ctx := context.Background()

	require.NoError(t, g.Put(ctx, "k", "v", time.Minute))
	val, err := g.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	_, err = g.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestGuarded_DefaultTimeout(t *testing.T) {
	g := Guarded(NewMemory(time.Minute), 0)
	defer g.Close()
	assert.Equal(t, DefaultOpTimeout, g.timeout)
}

func TestGuarded_TimeoutIgnoringBackend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	s := &stubStore{
		get: func(context.Context, string) (string, error) {
			blockForever(release)
			return "late", nil
		},
		put: func(context.Context, string, string, time.Duration) error {
			blockForever(release)
			return nil
		},
	}
	g := Guarded(s, 20*time.Millisecond)

	start := time.Now()
	_, err := g.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = g.Put(context.Background(), "k", "v", time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Less(t, time.Since(start), time.Second, "guard must not wait for a hung backend")
}

func TestGuarded_RawErrorsBecomeUnavailable(t *testing.T) {
	boom := errors.New("connection reset by peer")
	s := &stubStore{
		get: func(context.Context, string) (string, error) { return "", boom },
		put: func(context.Context, string, string, time.Duration) error { return boom },
	}
	g := Guarded(s, time.Second)

	_, err := g.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)

	err = g.Put(context.Background(), "k", "v", time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestGuarded_PanicsBecomeUnavailable(t *testing.T) {
	s := &stubStore{
		get: func(context.Context, string) (string, error) { panic("nil map") },
		put: func(context.Context, string, string, time.Duration) error { panic("nil map") },
	}
	g := Guarded(s, time.Second)

	_, err := g.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "nil map")

	assert.ErrorIs(t, g.Put(context.Background(), "k", "v", time.Second), ErrUnavailable)
}

func TestGuarded_DeleteNeverFails(t *testing.T) {
	s := &stubStore{
		delete: func(context.Context, string) error { return errors.New("redis down") },
	}
	g := Guarded(s, time.Second)

	assert.NoError(t, g.Delete(context.Background(), "k"))
}

func TestGuarded_UnavailableMemory(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	m.SetUnavailable(true)
	g := Guarded(m, time.Second)

	_, err := g.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}
