package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	"storefront/internal/analytics"
	"storefront/internal/apperror"
)

// Guard applies a Limiter to HTTP handlers. It owns the process-wide default
// policy and the global enable switch, both fixed at construction.
type Guard struct {
	limiter  *Limiter
	defaults Policy
	enabled  bool
	sink     analytics.Sink
	identify func(*http.Request) string
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithSink sets where rate_limit_exceeded events are sent. Panics raised by
// sink are recovered.
func WithSink(sink analytics.Sink) GuardOption {
	return func(g *Guard) {
		g.sink = analytics.Safe(sink)
	}
}

// WithIdentity replaces ClientIdentity as the source of counter keys.
func WithIdentity(identify func(*http.Request) string) GuardOption {
	return func(g *Guard) {
		g.identify = identify
	}
}

// NewGuard creates a Guard. When enabled is false every wrapped handler runs
// without touching the limiter.
func NewGuard(limiter *Limiter, defaults Policy, enabled bool, opts ...GuardOption) *Guard {
	g := &Guard{
		limiter:  limiter,
		defaults: defaults,
		enabled:  enabled,
		sink:     analytics.Noop{},
		identify: ClientIdentity,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports the global switch.
func (g *Guard) Enabled() bool {
	return g.enabled
}

// Policy returns the defaults with overrides applied.
func (g *Guard) Policy(overrides ...PolicyOption) Policy {
	return g.defaults.With(overrides...)
}

// Wrap limits next. Requests on skip paths, and all requests when the guard
// is disabled, reach next with no limiter call and no rate limit headers.
// Admitted requests get X-RateLimit-* headers; rejected ones receive a 429
// with Retry-After and never reach next.
func (g *Guard) Wrap(next func(http.ResponseWriter, *http.Request) error, overrides ...PolicyOption) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		policy := g.Policy(overrides...)
		if !g.enabled || policy.Skips(r.URL.Path) {
			return next(w, r)
		}

		identity := g.identify(r)
		status := g.limiter.Check(r.Context(), identity, policy)
		setRateLimitHeaders(w, status)

		if !status.Allowed {
			g.reject(w, r, identity, status)
			return nil
		}
		return next(w, r)
	}
}

// Status reports the current budget of the requesting client without
// counting a request.
func (g *Guard) Status(r *http.Request, overrides ...PolicyOption) Status {
	return g.limiter.Peek(r.Context(), g.identify(r), g.Policy(overrides...))
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, identity string, status Status) {
	retryAfter := status.RetryAfter(g.limiter.Now())

	g.limiter.logger.Warn("Rate limit exceeded",
		"identity", identity,
		"path", r.URL.Path,
		"limit", status.Limit,
		"retry_after", retryAfter,
	)

	g.sink.Track(context.WithoutCancel(r.Context()), analytics.NewEvent(analytics.EventRateLimitExceeded, map[string]any{
		"identity":   identity,
		"path":       r.URL.Path,
		"method":     r.Method,
		"limit":      status.Limit,
		"retryAfter": retryAfter,
	}))

	// Rejection details are public, so they bypass Normalize's redaction.
	appErr := apperror.NewRateLimitError("Too many requests, please try again later.", RejectionDetails{
		Limit:      status.Limit,
		ResetAt:    status.ResetAt.UnixMilli(),
		RetryAfter: retryAfter,
	})
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	apperror.Write(w, appErr.Status, apperror.Envelope{
		Success: false,
		Error: apperror.Body{
			Type:    appErr.Kind,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// RejectionDetails is the details member of a 429 response.
type RejectionDetails struct {
	Limit      int   `json:"limit"`
	ResetAt    int64 `json:"resetAt"`
	RetryAfter int   `json:"retryAfter"`
}

func setRateLimitHeaders(w http.ResponseWriter, s Status) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(s.ResetAt.Unix(), 10))
}
