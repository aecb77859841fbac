package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/identity"
	"github.com/ashureev/whisperbridge/internal/workflow"
)

// maxFormBodySize caps action request bodies.
const maxFormBodySize = 64 << 10

// formPart limits which form fields an endpoint accepts.
type formPart int

const (
	wholeForm formPart = iota
	identityPart
	offeringPart
)

// RegisterRoutes registers the session, catalog and config routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/identity", h.step(identityPart, ""))
			r.Post("/offering", h.step(offeringPart, ""))
			r.Post("/load", h.step(wholeForm, workflow.ActionLoad))
			r.Post("/send", h.step(wholeForm, workflow.ActionSend))
			r.Post("/render", h.step(wholeForm, workflow.ActionRender))
			r.Post("/another", h.step(wholeForm, workflow.ActionSubmitAnother))
			r.Post("/journey", h.step(wholeForm, workflow.ActionViewJourney))
			r.Post("/home", h.step(wholeForm, workflow.ActionReturnHome))
			r.Post("/exit", h.Exit)
		})

		r.Get("/catalog", h.GetCatalog)
		r.Post("/catalog/refresh", h.RefreshCatalog)
		r.Delete("/catalog", h.InvalidateCatalog)
	})
}

// GetSession returns the current view without running a pending submission.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entry := h.sessions.Acquire(userID, identity.SessionIDFromContext(r.Context()))

	view, err := h.ctl.View(r.Context(), entry.Snapshot())
	if err != nil {
		writeStepError(w, r, err, view)
		return
	}
	JSON(w, http.StatusOK, view)
}

func (h *Handler) step(part formPart, action workflow.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserIDFromContext(r.Context())
		sessionID := identity.SessionIDFromContext(r.Context())
		if userID == "" {
			Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		form, err := decodeForm(w, r)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		switch part {
		case identityPart:
			form.Provider, form.ScrollKey = nil, nil
		case offeringPart:
			form.Name, form.Email = nil, nil
		}

		// Rate-limit by userID only so clients cannot bypass it by rotating tabs.
		allow := func() bool { return h.limiter.Allow(userID) }

		entry := h.sessions.Acquire(userID, sessionID)
		var view workflow.View
		err = entry.Update(func(s domain.Session) (domain.Session, error) {
			if err := SendGate(allow, action, s); err != nil {
				return s, err
			}
			next, v, err := h.ctl.Step(r.Context(), s, form, action)
			view = v
			return next, err
		})
		if err != nil {
			writeStepError(w, r, err, view)
			return
		}

		if action != "" {
			slog.Info("Session action", "user_id", userID, "session_id", sessionID, "action", action, "stage", view.Stage)
		}
		JSON(w, http.StatusOK, view)
	}
}

// Exit discards the tab's session and tells the client where to navigate.
func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if entry := h.sessions.Get(userID, sessionID); entry != nil {
		// Leave a session with a submission in flight to the sweeper.
		if err := entry.Update(func(s domain.Session) (domain.Session, error) { return s, nil }); err == nil {
			h.sessions.Remove(userID, sessionID)
		}
	}
	JSON(w, http.StatusOK, map[string]string{"redirect": h.exitURL})
}

func decodeForm(w http.ResponseWriter, r *http.Request) (workflow.Form, error) {
	var form workflow.Form
	if r.Body == nil {
		return form, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySize)
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil && !errors.Is(err, io.EOF) {
		return form, errors.New("invalid request body")
	}
	return form, nil
}
