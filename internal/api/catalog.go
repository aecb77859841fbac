package api

import (
	"log/slog"
	"net/http"
)

type catalogResponse struct {
	Epoch   uint64   `json:"epoch"`
	Scrolls []string `json:"scrolls"`
}

// GetCatalog returns the cached scroll titles.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalogs.Catalog(r.Context())
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		Error(w, StatusFor(err), Code(err))
		return
	}
	JSON(w, http.StatusOK, catalogResponse{Epoch: cat.Epoch, Scrolls: cat.Titles()})
}

// RefreshCatalog reloads the catalog from the store and starts a new epoch.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalogs.Refresh(r.Context())
	if err != nil {
		slog.Error("Failed to refresh catalog", "error", err)
		Error(w, StatusFor(err), Code(err))
		return
	}
	slog.Info("Catalog refreshed", "epoch", cat.Epoch, "scrolls", cat.Len())
	JSON(w, http.StatusOK, catalogResponse{Epoch: cat.Epoch, Scrolls: cat.Titles()})
}

// InvalidateCatalog drops the cached catalog so the next read reloads it.
// The response carries the epoch that was dropped.
func (h *Handler) InvalidateCatalog(w http.ResponseWriter, _ *http.Request) {
	epoch := h.catalogs.Epoch()
	h.catalogs.Invalidate()
	slog.Info("Catalog invalidated", "epoch", epoch)
	JSON(w, http.StatusOK, map[string]uint64{"dropped_epoch": epoch})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.ctl.Providers(),
		"exit_url":  h.exitURL,
	})
}
