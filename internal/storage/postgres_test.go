package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func getPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

func newPostgresTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := getPostgresDSN(t)
	repo, err := NewPostgresRepository(context.Background(), models.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	_, err = repo.pool.Exec(context.Background(), `TRUNCATE products`)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPostgresRepository_RequiresDSN(t *testing.T) {
	_, err := NewPostgresRepository(context.Background(), models.DatabaseConfig{})
	assert.Error(t, err)
}

func TestPostgresRepository_InvalidDSN(t *testing.T) {
	_, err := NewPostgresRepository(context.Background(), models.DatabaseConfig{DSN: "postgres://invalid:5432/nonexistent?connect_timeout=1"})
	assert.Error(t, err)
}

func TestPostgresRepository(t *testing.T) {
	exerciseRepository(t, newPostgresTestRepository(t))
}
