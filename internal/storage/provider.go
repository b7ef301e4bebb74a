package storage

import (
	"context"
	"log/slog"
	"sync"

	"storefront/internal/apperror"
)

// Opener creates a new repository handle.
type Opener func(ctx context.Context) (Repository, error)

// Provider hands out the process-wide repository handle. The handle is opened
// lazily on first Acquire and reused afterwards; a failed open leaves the
// provider empty so the next Acquire retries.
type Provider struct {
	mu     sync.Mutex
	open   Opener
	repo   Repository
	logger *slog.Logger
}

// NewProvider creates a Provider that opens handles with open.
func NewProvider(open Opener) *Provider {
	return &Provider{open: open, logger: slog.Default()}
}

// NewProviderFor creates a Provider for a fixed, already-open repository.
func NewProviderFor(repo Repository) *Provider {
	p := NewProvider(func(context.Context) (Repository, error) { return repo, nil })
	p.repo = repo
	return p
}

// Acquire returns the shared handle, opening it if needed. Concurrent first
// calls open exactly once. Open failures are reported as a CONNECTION_ERROR.
func (p *Provider) Acquire(ctx context.Context) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.repo != nil {
		return p.repo, nil
	}

	repo, err := p.open(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to open repository", "error", err)
		return nil, apperror.NewConnectionError("Database connection unavailable", err)
	}
	p.repo = repo
	return repo, nil
}

// Release returns a handle obtained from Acquire. Pooled handles stay open, so
// this is a no-op kept for symmetry with Acquire.
func (p *Provider) Release(Repository) {}

// Reset closes the current handle, if any. The next Acquire opens a new one.
func (p *Provider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.repo == nil {
		return nil
	}
	err := p.repo.Close()
	p.repo = nil
	return err
}
