package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"storefront/internal/middleware"
	"storefront/internal/ratelimit"
	"storefront/internal/storage"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation. Health probes
// are not traced.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/api/v1/health"
			}),
		))
	}
}

// Dependencies groups what the routes are composed from.
type Dependencies struct {
	Handlers *Handlers
	Pipeline *middleware.Pipeline
	Guard    *ratelimit.Guard
	Provider *storage.Provider
}

// SetupRoutes builds the router. Every route runs inside the pipeline;
// catalog routes are additionally rate limited and get the repository.
func SetupRoutes(deps Dependencies, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	h, wrap := deps.Handlers, deps.Pipeline.Wrap
	limited := func(next middleware.HandlerFunc, overrides ...ratelimit.PolicyOption) http.Handler {
		return wrap(deps.Guard.Wrap(next, overrides...))
	}

	router.Handle("/health", wrap(h.HealthCheck)).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/health", wrap(h.HealthCheck)).Methods(http.MethodGet)
	api.Handle("/products", limited(middleware.WithDataAccess(deps.Provider, h.ListProducts))).Methods(http.MethodGet)
	api.Handle("/products/{id}", limited(middleware.WithDataAccess(deps.Provider, h.GetProduct))).Methods(http.MethodGet)
	api.Handle("/rate-limit/status", wrap(h.RateLimitStatus)).Methods(http.MethodGet)

	router.NotFoundHandler = wrap(h.NotFound)

	return router
}
