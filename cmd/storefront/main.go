package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/api"
	"storefront/internal/config"
	"storefront/internal/kvstore"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/observability"
	"storefront/internal/ratelimit"
	"storefront/internal/storage"
	"storefront/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	if cfg.IsProduction() && !ver.IsRelease() {
		slog.Warn("Running a non-release build in production", "version", ver.Version)
	}

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Counter store for the rate limiter
	store, err := initializeCounterStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize counter store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Product repository, opened on first use
	provider := storage.NewProvider(func(ctx context.Context) (storage.Repository, error) {
		return openRepository(ctx, cfg)
	})
	defer func() {
		if err := provider.Reset(); err != nil {
			slog.Error("Failed to close repository", "error", err)
		}
	}()

	sink, closeSink, err := initializeAnalytics(cfg, log)
	if err != nil {
		slog.Error("Failed to initialize analytics", "error", err)
		os.Exit(1)
	}
	defer closeSink()

	limiter := ratelimit.NewLimiter(store, ratelimit.WithLogger(log))
	guard := ratelimit.NewGuard(limiter, ratelimit.PolicyFromConfig(cfg.RateLimit), cfg.RateLimit.Enabled, ratelimit.WithSink(sink))

	pipeline := middleware.NewPipeline(
		middleware.WithLogger(log),
		middleware.WithSink(sink),
		middleware.WithErrorDetails(cfg.IncludeErrorDetails()),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(api.Dependencies{
		Handlers: api.NewHandlers(provider, store, guard, ver, api.WithErrorDetails(cfg.IncludeErrorDetails())),
		Pipeline: pipeline,
		Guard:    guard,
		Provider: provider,
	}, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"environment", cfg.Environment,
			"storage", cfg.Storage.Type,
			"counter_store", cfg.KV.Type,
			"rate_limit", cfg.RateLimit.Enabled,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeCounterStore opens the configured backend, instruments it when
// metrics are on and applies the per-operation timeout.
func initializeCounterStore(cfg *models.Config) (kvstore.Store, error) {
	backend, err := kvstore.Open(cfg.KV)
	if err != nil {
		return nil, err
	}

	var store kvstore.Store = backend
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStore(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		store = instrumented
	}
	return kvstore.Guarded(store, cfg.KV.OpTimeout), nil
}

// openRepository creates the product repository, wrapped with
// instrumentation if metrics are enabled.
func openRepository(ctx context.Context, cfg *models.Config) (storage.Repository, error) {
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if !cfg.Metrics.Enabled {
		return repo, nil
	}

	instrumented, err := observability.NewInstrumentedRepository(repo)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return instrumented, nil
}

// initializeAnalytics builds the event sink. The returned func flushes
// pending events and must be called on shutdown.
func initializeAnalytics(cfg *models.Config, log *slog.Logger) (analytics.Sink, func(), error) {
	if !cfg.Analytics.Enabled {
		return analytics.Noop{}, func() {}, nil
	}

	sinks := []analytics.Sink{analytics.NewLogSink(log)}
	if cfg.Metrics.Enabled {
		metricsSink, err := observability.NewMetricsSink()
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, metricsSink)
	}

	async := analytics.NewAsync(analytics.Multi(sinks...), 0)
	return async, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := async.Close(ctx); err != nil {
			slog.Warn("Analytics events lost on shutdown", "error", err, "dropped", async.Dropped())
		}
	}, nil
}
