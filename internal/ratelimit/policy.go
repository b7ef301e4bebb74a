package ratelimit

import (
	"strings"
	"time"

	"storefront/internal/models"
)

// Policy is the limit applied to one client: at most MaxRequests admitted
// requests per Window. Counters are stored under KeyPrefix, so routes with
// different prefixes have independent budgets. Requests whose path starts
// with one of SkipPaths are never limited.
//
// Policy is a value type. With returns a modified copy.
type Policy struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
	SkipPaths   []string
}

// PolicyOption overrides one field of a Policy for a single route.
type PolicyOption func(*Policy)

func WithMaxRequests(n int) PolicyOption {
	return func(p *Policy) {
		p.MaxRequests = n
	}
}

func WithWindow(d time.Duration) PolicyOption {
	return func(p *Policy) {
		p.Window = d
	}
}

func WithKeyPrefix(prefix string) PolicyOption {
	return func(p *Policy) {
		p.KeyPrefix = prefix
	}
}

// WithSkipPaths replaces the skip list.
func WithSkipPaths(paths ...string) PolicyOption {
	return func(p *Policy) {
		p.SkipPaths = paths
	}
}

// PolicyFromConfig builds the process-wide default policy.
func PolicyFromConfig(cfg models.RateLimitConfig) Policy {
	return Policy{
		MaxRequests: cfg.MaxRequests,
		Window:      time.Duration(cfg.WindowSeconds) * time.Second,
		KeyPrefix:   cfg.KeyPrefix,
		SkipPaths:   append([]string(nil), cfg.SkipPaths...),
	}
}

// With returns a copy of p with opts applied. Invalid overrides (non-positive
// limits or windows) are ignored.
func (p Policy) With(opts ...PolicyOption) Policy {
	out := p
	out.SkipPaths = append([]string(nil), p.SkipPaths...)
	for _, opt := range opts {
		opt(&out)
	}
	if out.MaxRequests <= 0 {
		out.MaxRequests = p.MaxRequests
	}
	if out.Window <= 0 {
		out.Window = p.Window
	}
	return out
}

// Key returns the counter key for identity.
func (p Policy) Key(identity string) string {
	return p.KeyPrefix + ":" + identity
}

// Skips reports whether path is exempt from limiting.
func (p Policy) Skips(path string) bool {
	for _, prefix := range p.SkipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
