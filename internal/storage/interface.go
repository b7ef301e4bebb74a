package storage

import (
	"context"

	"storefront/internal/models"
)

// Repository defines the product catalog persistence operations. Every
// implementation is safe for concurrent use; one handle is shared by all
// requests of the process.
type Repository interface {
	// Products returns up to limit products ordered by creation time, skipping
	// the first offset.
	Products(ctx context.Context, limit, offset int) ([]*models.Product, error)

	// GetProduct retrieves a product by its ID. Returns an error wrapping
	// ErrNotFound when no product has that ID.
	GetProduct(ctx context.Context, id string) (*models.Product, error)

	// SaveProduct stores or updates a product
	SaveProduct(ctx context.Context, p *models.Product) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources
	Close() error
}

// scanner is satisfied by pgx.Row and *sql.Row / *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
