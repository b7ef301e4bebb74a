package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
)

// MemoryRepository implements Repository with in-memory maps. It is meant for
// development and tests; data is lost on restart.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[string]*models.Product),
	}
}

// Products returns a page of products ordered by creation time, then ID.
func (m *MemoryRepository) Products(_ context.Context, limit, offset int) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if limit <= 0 || offset >= len(all) {
		return []*models.Product{}, nil
	}
	end := len(all)
	if offset+limit < end {
		end = offset + limit
	}

	// Return copies to prevent external modification
	page := make([]*models.Product, 0, end-offset)
	for _, p := range all[offset:end] {
		productCopy := *p
		page = append(page, &productCopy)
	}
	return page, nil
}

// GetProduct retrieves a product by its ID
func (m *MemoryRepository) GetProduct(_ context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.products[id]
	if !exists {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	productCopy := *p
	return &productCopy, nil
}

// SaveProduct stores or updates a product. CreatedAt of an existing product
// is preserved; zero timestamps are set to the current time.
func (m *MemoryRepository) SaveProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	productCopy := *p
	if productCopy.CreatedAt.IsZero() {
		productCopy.CreatedAt = now
	}
	if productCopy.UpdatedAt.IsZero() {
		productCopy.UpdatedAt = now
	}
	if existing, ok := m.products[p.ID]; ok {
		productCopy.CreatedAt = existing.CreatedAt
	}
	m.products[p.ID] = &productCopy
	return nil
}

// Ping always succeeds.
func (m *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}
