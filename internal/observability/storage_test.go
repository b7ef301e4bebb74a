package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/storage"
)

type failingRepository struct {
	*storage.MemoryRepository
}

func (failingRepository) Ping(context.Context) error {
	return errors.New("connection reset")
}

func TestInstrumentedRepository_RecordsOperations(t *testing.T) {
	reader, recorder := useTestProviders(t)

	repo, err := NewInstrumentedRepository(storage.NewMemoryRepository())
	require.NoError(t, err)
	ctx := context.Background()

	p := &models.Product{ID: "p-1", Name: "Mug", Currency: "USD", PriceCents: 900, CreatedAt: time.Now()}
	require.NoError(t, repo.SaveProduct(ctx, p))

	got, err := repo.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)

	page, err := repo.Products(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	require.NoError(t, repo.Ping(ctx))

	assert.Equal(t, uint64(4), histogramCount(t, reader, "storage.operation.duration"))
	assert.Zero(t, counterTotal(t, reader, "storage.operation.errors"))

	names := map[string]bool{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
	}
	assert.True(t, names["storage.SaveProduct"])
	assert.True(t, names["storage.GetProduct"])
	assert.True(t, names["storage.Products"])
	assert.True(t, names["storage.Ping"])
}

func TestInstrumentedRepository_NotFoundIsNotAnError(t *testing.T) {
	reader, _ := useTestProviders(t)

	repo, err := NewInstrumentedRepository(storage.NewMemoryRepository())
	require.NoError(t, err)

	_, err = repo.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, counterTotal(t, reader, "storage.operation.errors"))
}

func TestInstrumentedRepository_CountsErrors(t *testing.T) {
	reader, recorder := useTestProviders(t)

	repo, err := NewInstrumentedRepository(failingRepository{storage.NewMemoryRepository()})
	require.NoError(t, err)

	assert.Error(t, repo.Ping(context.Background()))
	assert.Equal(t, int64(1), counterTotal(t, reader, "storage.operation.errors"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "connection reset", spans[0].Status().Description)
}

func TestInstrumentedRepository_Close(t *testing.T) {
	useTestProviders(t)
	repo, err := NewInstrumentedRepository(storage.NewMemoryRepository())
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}
