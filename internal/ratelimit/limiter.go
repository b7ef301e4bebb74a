// Package ratelimit limits requests per client with fixed-size counters whose
// window restarts at the client's first request after the previous window
// ended. Counter state lives in a shared kvstore.Store so every instance of
// the service enforces the same budget.
//
// The read-then-write update is not atomic. Concurrent requests from one
// client can race and over- or under-count by a small margin; limits are
// approximate. When the store fails, the limiter admits the request.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"storefront/internal/kvstore"
)

// Status is the outcome of a check or peek.
type Status struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// RetryAfter returns the whole seconds until ResetAt, rounded up, never less
// than one.
func (s Status) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(s.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// CounterRecord is the value persisted for one client and policy.
type CounterRecord struct {
	Count            int   `json:"count"`
	FirstRequestTime int64 `json:"firstRequestTime"` // epoch milliseconds
}

// Limiter evaluates policies against counters in a Store. It is safe for
// concurrent use.
type Limiter struct {
	store  kvstore.Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used for fail-open warnings and rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// NewLimiter creates a limiter persisting counters in store. The store should
// already enforce an operation timeout (see kvstore.Guarded).
func NewLimiter(store kvstore.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Check counts one request from identity against p. Rejected requests are not
// counted. If the store cannot be read or written the request is admitted
// with a full budget and a single warning is logged.
func (l *Limiter) Check(ctx context.Context, identity string, p Policy) (st Status) {
	now := l.now()
	key := p.Key(identity)
	defer l.recoverFailOpen("check", key, p, now, &st)

	rec, err := l.load(ctx, key, p, now)
	if err != nil {
		return l.failOpen("read", key, p, now, err)
	}

	resetAt := time.UnixMilli(rec.FirstRequestTime + p.Window.Milliseconds())
	if rec.Count >= p.MaxRequests {
		return Status{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: p.MaxRequests}
	}

	rec.Count++
	data, err := json.Marshal(rec)
	if err != nil {
		return l.failOpen("encode", key, p, now, err)
	}
	if err := l.store.Put(ctx, key, string(data), p.Window); err != nil {
		return l.failOpen("write", key, p, now, err)
	}

	return Status{
		Allowed:   true,
		Remaining: p.MaxRequests - rec.Count,
		ResetAt:   resetAt,
		Limit:     p.MaxRequests,
	}
}

// Peek reports what Check would see for identity without counting a request.
// Remaining is the budget left before the next request.
func (l *Limiter) Peek(ctx context.Context, identity string, p Policy) (st Status) {
	now := l.now()
	key := p.Key(identity)
	defer l.recoverFailOpen("peek", key, p, now, &st)

	rec, err := l.load(ctx, key, p, now)
	if err != nil {
		return l.failOpen("read", key, p, now, err)
	}

	resetAt := time.UnixMilli(rec.FirstRequestTime + p.Window.Milliseconds())
	if rec.Count >= p.MaxRequests {
		return Status{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: p.MaxRequests}
	}
	return Status{
		Allowed:   true,
		Remaining: p.MaxRequests - rec.Count,
		ResetAt:   resetAt,
		Limit:     p.MaxRequests,
	}
}

// load returns the record in effect at now. An absent, unparsable or
// logically expired record yields a fresh one starting at now.
func (l *Limiter) load(ctx context.Context, key string, p Policy, now time.Time) (CounterRecord, error) {
	fresh := CounterRecord{Count: 0, FirstRequestTime: now.UnixMilli()}

	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return fresh, nil
	}
	if err != nil {
		return CounterRecord{}, err
	}

	var rec CounterRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Count < 0 {
		l.logger.Debug("Discarding unreadable rate limit record", "key", key, "error", err)
		return fresh, nil
	}

	// The window is half-open: at exactly ResetAt a new one begins.
	if now.UnixMilli()-rec.FirstRequestTime >= p.Window.Milliseconds() {
		return fresh, nil
	}
	return rec, nil
}

// recoverFailOpen turns a panic raised by the store into the fail-open
// status, so an unguarded store cannot take the request down.
func (l *Limiter) recoverFailOpen(op, key string, p Policy, now time.Time, st *Status) {
	if rec := recover(); rec != nil {
		*st = l.failOpen(op, key, p, now, fmt.Errorf("%w: panic: %v", kvstore.ErrUnavailable, rec))
	}
}

func (l *Limiter) failOpen(op, key string, p Policy, now time.Time, err error) Status {
	l.logger.Warn("Rate limit store unavailable, allowing request",
		"op", op,
		"key", key,
		"error", err,
	)
	return Status{
		Allowed:   true,
		Remaining: p.MaxRequests,
		ResetAt:   now.Add(p.Window),
		Limit:     p.MaxRequests,
	}
}
