package middleware

import (
	"net/http"

	"storefront/internal/storage"
)

// DataHandlerFunc is a handler that needs the repository.
type DataHandlerFunc func(w http.ResponseWriter, r *http.Request, repo storage.Repository) error

// WithDataAccess acquires the shared repository handle before running h and
// releases it afterwards. Acquire failures (CONNECTION_ERROR) are returned
// without running h.
func WithDataAccess(provider *storage.Provider, h DataHandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		repo, err := provider.Acquire(r.Context())
		if err != nil {
			return err
		}
		defer provider.Release(repo)
		return h(w, r, repo)
	}
}
