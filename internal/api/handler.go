// Package api provides HTTP handlers for the WhisperBridge API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/whisperbridge/internal/catalog"
	"github.com/ashureev/whisperbridge/internal/config"
	"github.com/ashureev/whisperbridge/internal/sessions"
	"github.com/ashureev/whisperbridge/internal/workflow"
)

// Pinger reports whether the data store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Catalogs serves, refreshes and drops the cached scroll catalog.
type Catalogs interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
	Refresh(ctx context.Context) (*catalog.Catalog, error)
	Invalidate()
	Epoch() uint64
}

// Handler provides common handler utilities.
type Handler struct {
	ctl      *workflow.Controller
	sessions *sessions.Manager
	catalogs Catalogs
	store    Pinger
	limiter  *RateLimiter

	exitURL       string
	healthTimeout time.Duration
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(ctl *workflow.Controller, sm *sessions.Manager, catalogs Catalogs, store Pinger, cfg *config.Config) *Handler {
	return &Handler{
		ctl:           ctl,
		sessions:      sm,
		catalogs:      catalogs,
		store:         store,
		limiter:       NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		exitURL:       cfg.ExitURL,
		healthTimeout: cfg.HealthCheckTimeout,
	}
}

// Limiter returns the per-device send limiter so other transports share it.
func (h *Handler) Limiter() *RateLimiter {
	return h.limiter
}

// Close stops background work owned by the handler.
func (h *Handler) Close() {
	h.limiter.Close()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
