package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func newTestProduct(id string, createdAt time.Time) *models.Product {
	return &models.Product{
		ID:         id,
		Name:       "Product " + id,
		PriceCents: 1999,
		Currency:   "USD",
		Stock:      5,
		Active:     true,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// exerciseRepository runs the behavior every backend must share.
func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		products, err := repo.Products(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, products)
	})

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, repo.SaveProduct(ctx, newTestProduct("p-1", base)))

		got, err := repo.GetProduct(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, "Product p-1", got.Name)
		assert.Equal(t, int64(1999), got.PriceCents)
		assert.Equal(t, "USD", got.Currency)
		assert.True(t, got.Active)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := repo.GetProduct(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update keeps created_at", func(t *testing.T) {
		p := newTestProduct("p-1", base.Add(time.Hour))
		p.Name = "Renamed"
		p.Stock = 0
		require.NoError(t, repo.SaveProduct(ctx, p))

		got, err := repo.GetProduct(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, 0, got.Stock)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("pagination", func(t *testing.T) {
		for i := 2; i <= 5; i++ {
			require.NoError(t, repo.SaveProduct(ctx, newTestProduct(fmt.Sprintf("p-%d", i), base.Add(time.Duration(i)*time.Minute))))
		}

		page, err := repo.Products(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "p-1", page[0].ID)
		assert.Equal(t, "p-2", page[1].ID)

		page, err = repo.Products(ctx, 2, 4)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "p-5", page[0].ID)

		page, err = repo.Products(ctx, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	defer repo.Close()
	exerciseRepository(t, repo)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := newTestProduct("p-1", time.Now())
	require.NoError(t, repo.SaveProduct(ctx, p))
	p.Name = "mutated after save"

	got, err := repo.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Product p-1", got.Name)

	got.Name = "mutated after get"
	again, _ := repo.GetProduct(ctx, "p-1")
	assert.Equal(t, "Product p-1", again.Name)
}

func TestMemoryRepository_FillsTimestamps(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.SaveProduct(context.Background(), &models.Product{ID: "p", Name: "P", Currency: "EUR"}))

	got, err := repo.GetProduct(context.Background(), "p")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryRepository_NonPositiveLimit(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.SaveProduct(context.Background(), newTestProduct("p", time.Now())))

	page, err := repo.Products(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryRepository_Concurrency(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p-%d", i)
			assert.NoError(t, repo.SaveProduct(ctx, newTestProduct(id, time.Now())))
			_, err := repo.GetProduct(ctx, id)
			assert.NoError(t, err)
			_, err = repo.Products(ctx, 5, 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := repo.Products(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
