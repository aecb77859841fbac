// Package realtime carries the session workflow over a WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/whisperbridge/internal/api"
	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/identity"
	"github.com/ashureev/whisperbridge/internal/sessions"
	"github.com/ashureev/whisperbridge/internal/workflow"
)

// Limiter throttles sends per device.
type Limiter interface {
	Allow(key string) bool
}

// WebSocketHandler serves /ws/session.
type WebSocketHandler struct {
	ctl           *workflow.Controller
	sm            *sessions.Manager
	limiter       Limiter
	exitURL       string
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(ctl *workflow.Controller, sm *sessions.Manager, limiter Limiter, exitURL, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		ctl:           ctl,
		sm:            sm,
		limiter:       limiter,
		exitURL:       exitURL,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage is a client message. Type is "action", "ping" or "exit".
type wsMessage struct {
	Type   string          `json:"type"`
	Action workflow.Action `json:"action,omitempty"`
	Form   workflow.Form   `json:"form"`
}

// wsReply is a server message. Type is "view", "error", "pong" or "exit".
type wsReply struct {
	Type     string          `json:"type"`
	Action   workflow.Action `json:"action,omitempty"`
	View     *workflow.View  `json:"view,omitempty"`
	Error    string          `json:"error,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	entry := h.sm.Acquire(userID, sessionID)
	view, err := h.ctl.View(ctx, entry.Snapshot())
	if err != nil {
		h.writeError(ctx, ws, "", err)
	} else {
		h.writeJSON(ctx, ws, wsReply{Type: "view", View: &view})
	}

	var wg sync.WaitGroup
	h.inputLoop(ctx, ws, entry, &wg)
	cancel()
	wg.Wait()
	slog.Info("WebSocket session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, entry *sessions.Entry, wg *sync.WaitGroup) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "user_id", entry.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", entry.UserID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.writeJSON(ctx, ws, wsReply{Type: "error", Error: "invalid_message"})
			continue
		}

		switch msg.Type {
		case "ping":
			entry.Touch()
			h.writeJSON(ctx, ws, wsReply{Type: "pong"})
		case "action":
			// A render blocks for the responder; run it aside so pings and
			// busy rejections still get answered.
			if msg.Action == workflow.ActionRender {
				wg.Add(1)
				go func(msg wsMessage) {
					defer wg.Done()
					h.perform(ctx, ws, entry, msg)
				}(msg)
				continue
			}
			h.perform(ctx, ws, entry, msg)
		case "exit":
			if err := entry.Update(func(s domain.Session) (domain.Session, error) { return s, nil }); err == nil {
				h.sm.Remove(entry.UserID, entry.SessionID)
			}
			h.writeJSON(ctx, ws, wsReply{Type: "exit", Redirect: h.exitURL})
			return
		default:
			h.writeJSON(ctx, ws, wsReply{Type: "error", Error: "unknown_message_type"})
		}
	}
}

func (h *WebSocketHandler) perform(ctx context.Context, ws *websocket.Conn, entry *sessions.Entry, msg wsMessage) {
	var allow func() bool
	if h.limiter != nil {
		allow = func() bool { return h.limiter.Allow(entry.UserID) }
	}

	var view workflow.View
	err := entry.Update(func(s domain.Session) (domain.Session, error) {
		if err := api.SendGate(allow, msg.Action, s); err != nil {
			return s, err
		}
		next, v, err := h.ctl.Step(ctx, s, msg.Form, msg.Action)
		view = v
		return next, err
	})
	if err != nil {
		if _, ok := workflow.WarningOf(err); ok {
			h.writeJSON(ctx, ws, wsReply{Type: "view", Action: msg.Action, View: &view})
			return
		}
		h.writeError(ctx, ws, msg.Action, err)
		return
	}
	h.writeJSON(ctx, ws, wsReply{Type: "view", Action: msg.Action, View: &view})
}

func (h *WebSocketHandler) writeError(ctx context.Context, ws *websocket.Conn, action workflow.Action, err error) {
	if api.StatusFor(err) >= http.StatusInternalServerError {
		slog.Error("WebSocket action failed", "error", err, "action", action)
	}
	h.writeJSON(ctx, ws, wsReply{Type: "error", Action: action, Error: api.Code(err)})
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v wsReply) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode websocket reply", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil && ctx.Err() == nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
