package sessions

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often StartSweeper looks for idle sessions.
const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically drops sessions
// idle for longer than ttl. It stops when ctx is done; the returned channel
// is closed once it has.
func StartSweeper(ctx context.Context, m *Manager, interval, ttl time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(ttl); n > 0 {
					slog.Info("Session sweeper removed idle sessions", "count", n, "remaining", m.Len())
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}
