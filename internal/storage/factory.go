package storage

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// Open instantiates the repository backend named by cfg.Type.
// Supported backends:
//   - memory: in-memory maps (development and tests)
//   - postgres: PostgreSQL through a pgx pool
//   - sqlite: SQLite file through modernc.org/sqlite
func Open(ctx context.Context, cfg models.StorageConfig) (Repository, error) {
	switch cfg.Type {
	case models.StorageTypeMemory:
		return NewMemoryRepository(), nil
	case models.StorageTypePostgres:
		return NewPostgresRepository(ctx, cfg.Database)
	case models.StorageTypeSQLite:
		return NewSQLiteRepository(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// SupportedTypes returns every storage type Open accepts.
func SupportedTypes() []string {
	return []string{models.StorageTypeMemory, models.StorageTypePostgres, models.StorageTypeSQLite}
}
