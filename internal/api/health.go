package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterHealth registers the health route.
func (h *Handler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health reports whether the data store answers within the health timeout.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.healthTimeout)
		defer cancel()
	}

	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("Health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":        "unhealthy",
			"store":         "unreachable",
			"catalog_epoch": h.catalogs.Epoch(),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"store":         "ok",
		"catalog_epoch": h.catalogs.Epoch(),
	})
}
