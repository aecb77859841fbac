// Package identity gives every browser an anonymous device id (a cookie) and
// every tab a session id (a header or query parameter). Neither is an
// account: travelers are keyed by email in the store.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	AnonCookieName        = "wb_anon_id"
	SessionHeaderName     = "X-WB-Session-ID"
	SessionQueryParam     = "session_id"
	DefaultSessionIDValue = "default"

	anonPrefix     = "anon_"
	deviceLifetime = 30 * 24 * time.Hour
	maxTabIDLen    = 128
)

type ctxKey struct{ name string }

var (
	deviceKey = ctxKey{"device"}
	tabKey    = ctxKey{"tab"}
)

// UserIDFromContext returns the device id, or "" outside the middleware.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceKey).(string)
	return id
}

// SessionIDFromContext returns the tab id, or DefaultSessionIDValue.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tabKey).(string); ok {
		return id
	}
	return DefaultSessionIDValue
}

// WithIDs returns ctx carrying the given device and tab ids. The tab id is
// normalized the same way the middleware does it.
func WithIDs(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, deviceKey, userID)
	return context.WithValue(ctx, tabKey, normalizeTabID(sessionID))
}

// newDeviceID returns "anon_" followed by 32 lowercase hex digits.
func newDeviceID() string {
	id := uuid.New()
	return anonPrefix + strings.ReplaceAll(id.String(), "-", "")
}

// parseDeviceID accepts only ids newDeviceID could have produced.
func parseDeviceID(raw string) (string, bool) {
	hex, ok := strings.CutPrefix(raw, anonPrefix)
	if !ok || len(hex) != 32 || strings.ToLower(hex) != hex {
		return "", false
	}
	if _, err := uuid.Parse(hex); err != nil {
		return "", false
	}
	return raw, true
}

func normalizeTabID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxTabIDLen {
		return DefaultSessionIDValue
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == ':', r == '-':
		default:
			return DefaultSessionIDValue
		}
	}
	return id
}

func tabIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeaderName); id != "" {
		return normalizeTabID(id)
	}
	return normalizeTabID(r.URL.Query().Get(SessionQueryParam))
}

// deviceCookie renews the device cookie on every response so an active
// browser keeps its id.
func deviceCookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceLifetime / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

// Middleware resolves the device and tab ids of every request. Unknown or
// forged device cookies are replaced with a fresh id. In development the
// cookie is not marked Secure so plain http://localhost works.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var device string
			if c, err := r.Cookie(AnonCookieName); err == nil {
				device, _ = parseDeviceID(c.Value)
			}
			if device == "" {
				device = newDeviceID()
			}
			http.SetCookie(w, deviceCookie(device, !isDev))

			ctx := WithIDs(r.Context(), device, tabIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns the remote host without its port.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
