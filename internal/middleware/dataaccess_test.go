package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperror"
	"storefront/internal/storage"
)

func TestWithDataAccess_PassesSharedHandle(t *testing.T) {
	repo := storage.NewMemoryRepository()
	provider := storage.NewProviderFor(repo)

	var got []storage.Repository
	h := WithDataAccess(provider, func(w http.ResponseWriter, r *http.Request, repo storage.Repository) error {
		got = append(got, repo)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
	}
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Same(t, repo, r)
	}
}

func TestWithDataAccess_ConnectionFailure(t *testing.T) {
	provider := storage.NewProvider(func(context.Context) (storage.Repository, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	called := false
	h := WithDataAccess(provider, func(http.ResponseWriter, *http.Request, storage.Repository) error {
		called = true
		return nil
	})

	err := h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.False(t, called)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindConnection, appErr.Kind)
}

func TestWithDataAccess_InsidePipeline(t *testing.T) {
	provider := storage.NewProvider(func(context.Context) (storage.Repository, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	f := newFixture()
	rr := f.serve(WithDataAccess(provider, func(http.ResponseWriter, *http.Request, storage.Repository) error {
		return nil
	}), "/api/v1/products")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, apperror.KindConnection, env.Error.Type)
}

func TestWithDataAccess_HandlerErrorPropagates(t *testing.T) {
	provider := storage.NewProviderFor(storage.NewMemoryRepository())
	h := WithDataAccess(provider, func(_ http.ResponseWriter, r *http.Request, repo storage.Repository) error {
		_, err := repo.GetProduct(r.Context(), "missing")
		return err
	})

	err := h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
