// Package responder produces the reply to a sent scroll.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// Request describes one sent scroll.
type Request struct {
	ScrollKey  string
	ScrollText string
	Provider   string
}

// Responder answers a sent scroll.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// ReflectionSource looks up canned reflections.
type ReflectionSource interface {
	ListReflections(ctx context.Context, scrollName, modelName string) ([]domain.Reflection, error)
}

// DefaultDelay is how long the stub pretends the provider takes.
const DefaultDelay = 20 * time.Second

// ReflectionResponder is the stub responder: no provider is contacted. It
// waits for a fixed delay, then answers with a uniformly random reflection
// seeded for the exact (scroll, provider) pair, or the no-reflection text.
type ReflectionResponder struct {
	source ReflectionSource
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	pick   func(n int) int
}

// Option configures a ReflectionResponder.
type Option func(*ReflectionResponder)

// WithDelay overrides DefaultDelay. Zero disables the wait.
func WithDelay(d time.Duration) Option {
	return func(r *ReflectionResponder) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithSleeper replaces the wait, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *ReflectionResponder) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithPicker replaces the random index choice; pick(n) must return [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(r *ReflectionResponder) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// NewReflectionResponder creates the stub responder.
func NewReflectionResponder(source ReflectionSource, opts ...Option) *ReflectionResponder {
	r := &ReflectionResponder{
		source: source,
		delay:  DefaultDelay,
		sleep:  Sleep,
		pick:   rand.IntN,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Responder = (*ReflectionResponder)(nil)

// Respond waits, then picks a reflection.
func (r *ReflectionResponder) Respond(ctx context.Context, req Request) (string, error) {
	slog.Info("Sending scroll", "scroll", req.ScrollKey, "provider", req.Provider, "delay", r.delay)
	if err := r.sleep(ctx, r.delay); err != nil {
		return "", fmt.Errorf("wait for provider: %w", err)
	}

	reflections, err := r.source.ListReflections(ctx, req.ScrollKey, req.Provider)
	if err != nil {
		return "", fmt.Errorf("lookup reflections: %w", err)
	}
	if len(reflections) == 0 {
		slog.Info("No reflection seeded", "scroll", req.ScrollKey, "provider", req.Provider)
		return domain.NoReflectionText, nil
	}
	return reflections[r.pick(len(reflections))].Text, nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
