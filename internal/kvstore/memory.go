package kvstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// entry holds a value and the instant it stops being visible.
type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Store. Entries are hidden once their TTL elapses and
// a background goroutine evicts them every cleanup interval.
//
// Memory is not shared across processes; use Redis when more than one
// instance serves traffic.
type Memory struct {
	cleanupInterval time.Duration
	now             func() time.Time
	unavailable     atomic.Bool

	mu      sync.RWMutex
	entries map[string]entry
	done    chan struct{}
	closed  bool
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithNow overrides the clock used for expiry. Tests use it to move time
// forward without sleeping.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an in-memory store and starts its eviction goroutine.
// Close must be called to stop it.
func NewMemory(cleanupInterval time.Duration, opts ...MemoryOption) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m := &Memory{
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]entry),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanup()
	return m
}

// SetUnavailable makes every subsequent Get and Put fail with ErrUnavailable
// until it is called again with false.
func (m *Memory) SetUnavailable(down bool) {
	m.unavailable.Store(down)
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := m.check(ctx); err != nil {
		return "", err
	}

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.now().Before(e.expiresAt) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.check(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := m.check(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included until the
// next eviction.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the eviction goroutine. It is safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory) check(ctx context.Context) error {
	if m.unavailable.Load() {
		return ErrUnavailable
	}
	return ctx.Err()
}

func (m *Memory) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Memory) evictExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
