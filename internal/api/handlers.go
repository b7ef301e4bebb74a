package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"storefront/internal/apperror"
	"storefront/internal/kvstore"
	"storefront/internal/models"
	"storefront/internal/ratelimit"
	"storefront/internal/storage"
	"storefront/internal/version"
)

// healthProbeKey is read (never written) to check the counter store.
const healthProbeKey = "health:probe"

const healthCheckTimeout = 2 * time.Second

// Handlers contains the HTTP handlers of the storefront API.
type Handlers struct {
	provider *storage.Provider
	store    kvstore.Store
	guard    *ratelimit.Guard
	version  version.Info
	started  time.Time

	includeDetails bool
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithErrorDetails lets health responses carry raw failure causes. Must be
// off in production, where causes can contain hosts and driver output.
func WithErrorDetails(include bool) HandlerOption {
	return func(h *Handlers) {
		h.includeDetails = include
	}
}

// NewHandlers creates the handlers. store is the counter store used by the
// rate limiter; it is only probed by the health check.
func NewHandlers(provider *storage.Provider, store kvstore.Store, guard *ratelimit.Guard, ver version.Info, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		provider: provider,
		store:    store,
		guard:    guard,
		version:  ver,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListProducts handles catalog listing
// GET /api/v1/products?limit=&offset=
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request, repo storage.Repository) error {
	req, problems := models.ParseListProductsRequest(r.URL.Query())
	if problems == nil {
		problems = req.Validate()
	}
	if problems != nil {
		return apperror.NewValidationError("Invalid query parameters", problems)
	}

	// One extra row tells whether another page exists.
	products, err := repo.Products(r.Context(), req.Limit+1, req.Offset)
	if err != nil {
		return apperror.NewDatabaseError("Failed to list products", err)
	}

	hasMore := len(products) > req.Limit
	if hasMore {
		products = products[:req.Limit]
	}

	resp := models.NewSuccessResponse(products)
	resp.Meta = models.PageMeta{
		Limit:   req.Limit,
		Offset:  req.Offset,
		Count:   len(products),
		HasMore: hasMore,
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// GetProduct handles single product lookups
// GET /api/v1/products/{id}
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request, repo storage.Repository) error {
	id := mux.Vars(r)["id"]

	product, err := repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.NewNotFoundError("Product", id)
		}
		return apperror.NewDatabaseError("Failed to load product", err)
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(product))
	return nil
}

// RateLimitStatus reports the caller's remaining budget without consuming it
// GET /api/v1/rate-limit/status
func (h *Handlers) RateLimitStatus(w http.ResponseWriter, r *http.Request) error {
	st := h.guard.Status(r)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.RateLimitStatusResponse{
		Allowed:   st.Allowed,
		Remaining: st.Remaining,
		ResetAt:   st.ResetAt.UnixMilli(),
		Limit:     st.Limit,
		Enabled:   h.guard.Enabled(),
	}))
	return nil
}

// HealthCheck reports the repository and counter store state. A failing
// counter store only degrades the service since the limiter fails open.
// GET /health, GET /api/v1/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Release()
	response.Uptime = time.Since(h.started).Round(time.Second).String()

	if err := h.checkRepository(ctx); err != nil {
		slog.WarnContext(ctx, "Health check failed", "component", "repository", "error", err)
		response.AddComponent("repository", models.StatusUnhealthy, h.failureMessage(err))
	} else {
		response.AddComponent("repository", models.StatusHealthy, "")
	}

	if _, err := h.store.Get(ctx, healthProbeKey); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		response.AddComponent("counter_store", models.StatusDegraded, "rate limiting is failing open")
	} else {
		response.AddComponent("counter_store", models.StatusHealthy, "")
	}

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
	return nil
}

func (h *Handlers) checkRepository(ctx context.Context) error {
	repo, err := h.provider.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.provider.Release(repo)
	if err := repo.Ping(ctx); err != nil {
		return apperror.NewConnectionError("Database ping failed", err)
	}
	return nil
}

// failureMessage is the public text for a failed component.
func (h *Handlers) failureMessage(err error) string {
	if h.includeDetails {
		return err.Error()
	}
	return apperror.Classify(err).Err.Kind.DefaultMessage()
}

// NotFound answers unknown routes with a RESOURCE_NOT_FOUND envelope.
func (h *Handlers) NotFound(_ http.ResponseWriter, r *http.Request) error {
	return apperror.New(apperror.KindNotFound, "Route "+r.URL.Path+" not found")
}

// writeJSON writes data as a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing else can be written.
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
