// WhisperBridge - scroll offering server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/whisperbridge/internal/api"
	"github.com/ashureev/whisperbridge/internal/catalog"
	"github.com/ashureev/whisperbridge/internal/config"
	"github.com/ashureev/whisperbridge/internal/identity"
	"github.com/ashureev/whisperbridge/internal/middleware"
	"github.com/ashureev/whisperbridge/internal/realtime"
	"github.com/ashureev/whisperbridge/internal/responder"
	"github.com/ashureev/whisperbridge/internal/sessions"
	"github.com/ashureev/whisperbridge/internal/store"
	"github.com/ashureev/whisperbridge/internal/workflow"
	"github.com/ashureev/whisperbridge/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	client, err := store.Open(cfg.Store.URL, cfg.Store.Key, cfg.Store.Timeout)
	if err != nil {
		slog.Error("Failed to open data store", "error", err)
		os.Exit(1)
	}
	repo := store.NewRepository(client,
		store.WithSubmissionsTable(cfg.Store.SubmissionsTable),
		store.WithAtomicIncrement(cfg.Store.AtomicIncrement),
	)
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close data store", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.HealthCheckTimeout)
	err = repo.Ping(pingCtx)
	cancelPing()
	if err != nil {
		slog.Error("Data store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Data store connected")

	if cfg.Store.SeedPath != "" {
		seed, err := store.LoadSeed(cfg.Store.SeedPath)
		if err != nil {
			slog.Error("Failed to load seed file", "path", cfg.Store.SeedPath, "error", err)
			os.Exit(1)
		}
		res, err := store.ApplySeed(context.Background(), client, seed)
		if err != nil {
			slog.Error("Failed to apply seed", "error", err)
			os.Exit(1)
		}
		slog.Info("Seed applied", "scrolls", res.Scrolls, "reflections", res.Reflections, "skipped", res.Skipped)
	}

	// Initialize services.
	catalogs := catalog.NewProvider(repo, cfg.CatalogTTL, catalog.WithLoadTimeout(cfg.Store.Timeout))
	resp := responder.NewReflectionResponder(repo, responder.WithDelay(cfg.ResponderDelay))
	ctl := workflow.New(repo, catalogs, resp, workflow.WithProviders(cfg.Providers))
	sm := sessions.NewManager()

	// Initialize handlers.
	h := api.NewHandler(ctl, sm, catalogs, repo, cfg)
	defer h.Close()
	wsHandler := realtime.NewWebSocketHandler(ctl, sm, h.Limiter(), cfg.ExitURL, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware. /health is served by the handler so it can ping the store.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins(), identity.SessionHeaderName))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	h.RegisterHealth(r)
	h.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Render blocks for the responder delay, so WriteTimeout must exceed it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ResponderDelay + cfg.Store.Timeout*3 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeperDone := sessions.StartSweeper(ctx, sm, 0, cfg.SessionTTL)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}
