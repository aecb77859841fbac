package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/sessions"
	"github.com/ashureev/whisperbridge/internal/shared"
	"github.com/ashureev/whisperbridge/internal/store"
	"github.com/ashureev/whisperbridge/internal/workflow"
)

// ErrRateLimited rejects a send beyond the per-user quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// StatusFor maps a controller or store error to an HTTP status.
func StatusFor(err error) int {
	var ve *workflow.ValidationError
	var se *store.Error
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrActionUnavailable),
		errors.Is(err, workflow.ErrOfferingLocked),
		errors.Is(err, sessions.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, workflow.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case shared.IsStoreBusyError(err), storeBusyStatus(store.StatusCode(err)):
		return http.StatusServiceUnavailable
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func storeBusyStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Code is the short machine-readable error name sent to clients.
func Code(err error) string {
	switch StatusFor(err) {
	case http.StatusConflict:
		switch {
		case errors.Is(err, sessions.ErrBusy):
			return "session_busy"
		case errors.Is(err, workflow.ErrOfferingLocked):
			return "offering_locked"
		default:
			return "action_unavailable"
		}
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadRequest:
		return "unknown_action"
	case http.StatusGatewayTimeout:
		return "store_timeout"
	case http.StatusServiceUnavailable:
		return "store_busy"
	case http.StatusBadGateway:
		return "store_error"
	default:
		return "internal_error"
	}
}

// SendGate wraps a session update so a send spends quota only when the
// session can actually send. allow is nil when no limit applies.
func SendGate(allow func() bool, action workflow.Action, s domain.Session) error {
	if allow == nil || action != workflow.ActionSend || !workflow.Offers(s, workflow.ActionSend) {
		return nil
	}
	if !allow() {
		return ErrRateLimited
	}
	return nil
}

// writeStepError writes err for a failed interaction. A validation failure
// still carries the view so the client can show the warning in place.
func writeStepError(w http.ResponseWriter, r *http.Request, err error, view workflow.View) {
	status := StatusFor(err)
	if status == http.StatusUnprocessableEntity {
		JSON(w, status, view)
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Session action failed", "error", err, "path", r.URL.Path, "status", status)
	} else {
		slog.Warn("Session action rejected", "error", err, "path", r.URL.Path, "status", status)
	}
	Error(w, status, Code(err))
}
