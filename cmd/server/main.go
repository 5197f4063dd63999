package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"storefront-api/internal/catalog"
	"storefront-api/internal/client"
	"storefront-api/internal/config"
	"storefront-api/internal/handlers"
	"storefront-api/internal/middleware"
	"storefront-api/internal/repository"
	"storefront-api/internal/session"
	"storefront-api/internal/telemetry"
)

const (
	serviceName = "storefront-api"
	version     = "1.0.0"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting Storefront API", "service", serviceName, "version", version)

	ctx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	otelTelemetry := telemetry.InitMetrics(ctx, cfg.MetricsExporter, telemetry.DefaultMetricsAddr)
	slog.Info("OpenTelemetry telemetry initialized", "exporter", otelTelemetry.Exporter())

	apiTelemetry := telemetry.NewStorefrontTelemetry()
	if err := apiTelemetry.InitializeTelemetry(ctx); err != nil {
		slog.Error("Failed to initialize API telemetry", "error", err)
		return
	}

	larek := client.NewLarekClient(cfg.APIURL(), cfg.CDNURL(), cfg.APITimeoutDuration())

	catalogService := catalog.NewService(larek, nil, catalog.Config{
		RefreshInterval: cfg.CatalogRefreshDuration(),
		OnRefresh: func(success bool, _ int, _ time.Duration) {
			apiTelemetry.RecordCatalogRefresh(ctx, success)
		},
	})

	manager := session.NewManager(session.Config{
		TTL:             cfg.SessionTTLDuration(),
		CleanupInterval: cfg.SessionCleanupDuration(),
		MaxEvents:       cfg.MaxEvents(),
		Logger:          slog.Default(),
	}, catalogService)
	catalogService.SetBroadcaster(manager)
	catalogService.Start(ctx)

	orders, err := openOrderRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize order archive", "backend", cfg.OrderArchiveBackend(), "error", err)
		return
	}
	slog.Info("Order archive initialized", "backend", cfg.OrderArchiveBackend())

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(manager)
	intentHandler := handlers.NewIntentHandler(manager, apiTelemetry)
	checkoutHandler := handlers.NewCheckoutHandler(manager, larek, orders, apiTelemetry)
	eventsHandler := handlers.NewEventsHandler(manager, slog.Default())
	adminHandler := handlers.NewAdminHandler(catalogService, orders, manager)
	healthHandler := handlers.NewHealthHandler(manager, catalogService, larek)

	r := mux.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(telemetry.NewTelemetryMiddleware(apiTelemetry).Middleware)

	rateLimitConfig := middleware.ParseRateLimitConfig(cfg)
	var rateLimiter *middleware.RateLimiter
	if rateLimitConfig.Enabled {
		rateLimiter = middleware.NewRateLimiter(rateLimitConfig)
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
		slog.Info("Rate limiting middleware enabled")
	} else {
		slog.Info("Rate limiting middleware disabled")
	}
	rateLimitStatusHandler := handlers.NewRateLimitStatusHandler(rateLimiter)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", sessionHandler.CreateSession).Methods("POST")
	v1.HandleFunc("/sessions/{sessionId}", sessionHandler.DeleteSession).Methods("DELETE")
	v1.HandleFunc("/sessions/{sessionId}/state", sessionHandler.GetState).Methods("GET")
	v1.HandleFunc("/sessions/{sessionId}/catalog", sessionHandler.GetCatalog).Methods("GET")
	v1.HandleFunc("/sessions/{sessionId}/intents", intentHandler.PostIntent).Methods("POST")
	v1.HandleFunc("/sessions/{sessionId}/checkout", checkoutHandler.Checkout).Methods("POST")
	v1.HandleFunc("/sessions/{sessionId}/events", eventsHandler.GetEvents).Methods("GET")

	// Admin API routes (v1) - require admin authentication
	adminV1 := r.PathPrefix("/v1/admin").Subrouter()
	adminV1.Use(middleware.AdminAuthMiddleware(cfg.AdminKeys()))
	adminV1.HandleFunc("/catalog/refresh", adminHandler.RefreshCatalog).Methods("POST")
	adminV1.HandleFunc("/catalog/status", adminHandler.CatalogStatus).Methods("GET")
	adminV1.HandleFunc("/orders", adminHandler.ListOrders).Methods("GET")
	adminV1.HandleFunc("/sessions", adminHandler.ListSessions).Methods("GET")
	adminV1.HandleFunc("/rate-limit/status", rateLimitStatusHandler.GetRateLimitStatus).Methods("GET")
	adminV1.HandleFunc("/rate-limit/reset", rateLimitStatusHandler.ResetRateLimits).Methods("POST")

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	slog.Debug("Available endpoints",
		"session_endpoints", []string{
			"POST /v1/sessions",
			"DELETE /v1/sessions/{sessionId}",
			"GET /v1/sessions/{sessionId}/state",
			"GET /v1/sessions/{sessionId}/catalog",
			"POST /v1/sessions/{sessionId}/intents",
			"POST /v1/sessions/{sessionId}/checkout",
			"GET /v1/sessions/{sessionId}/events",
		},
		"events_params", []string{
			"?offset=<number> (optional: starting offset, default 0)",
			"?limit=<number> (optional: max events, default 100)",
			"?wait=<seconds> (optional: long polling, default 0)",
		},
		"system_endpoints", []string{
			"GET /health",
		})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before tearing down sessions
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	catalogService.Stop()
	cancelRoot()
	manager.Stop()
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if err := orders.Close(); err != nil {
		slog.Error("Error closing order archive", "error", err)
	}

	otelTelemetry.Close(shutdownCtx)
	slog.Info("Telemetry shutdown completed")

	slog.Info("Server exited")
}

func openOrderRepository(ctx context.Context, cfg *config.Config) (repository.OrderRepository, error) {
	if cfg.DatabaseURL == "" {
		return repository.NewMemoryOrderRepository(), nil
	}
	db, err := repository.OpenDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewPostgresOrderRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}
