package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// errEmptyInsert is returned when a backend accepts an insert but returns no row.
var errEmptyInsert = errors.New("insert returned no record")

// Repository maps WhisperBridge records onto a generic Client.
type Repository struct {
	client          Client
	submissions     string
	atomicIncrement bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithSubmissionsTable sets the collection submissions are appended to.
// Passing ScrollsTable reproduces the legacy layout where catalog rows and
// submissions share one collection.
func WithSubmissionsTable(name string) Option {
	return func(r *Repository) {
		if name != "" {
			r.submissions = name
		}
	}
}

// WithAtomicIncrement makes RecordOffering use the backend's atomic
// increment when it has one. Off by default: the count is then read and
// written back, and concurrent submissions for one email can lose an update.
func WithAtomicIncrement(enabled bool) Option {
	return func(r *Repository) {
		r.atomicIncrement = enabled
	}
}

// NewRepository wraps client.
func NewRepository(client Client, opts ...Option) *Repository {
	r := &Repository{client: client, submissions: SubmissionsTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client returns the underlying generic client.
func (r *Repository) Client() Client {
	return r.client
}

// SubmissionsTable returns the collection submissions are written to.
func (r *Repository) SubmissionsTable() string {
	return r.submissions
}

// Ping verifies backend connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close closes the backend.
func (r *Repository) Close() error {
	return r.client.Close()
}

// FindUserByEmail returns the first user with exactly this email, or nil.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	rows, err := r.client.Select(ctx, UsersTable, Eq("email", email))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	user, err := userFromRecord(rows[0])
	if err != nil {
		return nil, wrapErr("decode", UsersTable, err)
	}
	return user, nil
}

// RecordOffering resolves the user for id.Email and counts one more
// offering: an existing record has scroll_count incremented, a missing one
// is created with scroll_count 1. Email uniqueness is left to the backend.
func (r *Repository) RecordOffering(ctx context.Context, id domain.Identity) (*domain.UserRecord, error) {
	user, err := r.FindUserByEmail(ctx, id.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user == nil {
		rows, err := r.client.Insert(ctx, UsersTable, Record{
			"name":         id.Name,
			"email":        id.Email,
			"scroll_count": int64(1),
		})
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if len(rows) == 0 {
			return nil, wrapErr("insert", UsersTable, errEmptyInsert)
		}
		created, err := userFromRecord(rows[0])
		if err != nil {
			return nil, wrapErr("decode", UsersTable, err)
		}
		slog.Info("User created", "user_id", created.ID)
		return created, nil
	}

	if inc, ok := r.client.(Incrementer); ok && r.atomicIncrement {
		rows, err := inc.Increment(ctx, UsersTable, "scroll_count", Eq("id", user.ID))
		if err != nil {
			return nil, fmt.Errorf("increment scroll count: %w", err)
		}
		if len(rows) > 0 {
			if updated, err := userFromRecord(rows[0]); err == nil {
				return updated, nil
			}
		}
		user.ScrollCount++
		return user, nil
	}

	next := user.ScrollCount + 1
	if _, err := r.client.Update(ctx, UsersTable, Record{"scroll_count": next}, Eq("id", user.ID)); err != nil {
		return nil, fmt.Errorf("update scroll count: %w", err)
	}
	user.ScrollCount = next
	return user, nil
}

// InsertSubmission appends a submission record.
func (r *Repository) InsertSubmission(ctx context.Context, sub domain.ScrollSubmission) (domain.ScrollSubmission, error) {
	rows, err := r.client.Insert(ctx, r.submissions, Record{
		"user_id":    sub.UserID,
		"title":      sub.Title,
		"text":       sub.Text,
		"bridged_to": sub.BridgedTo,
	})
	if err != nil {
		return sub, fmt.Errorf("insert submission: %w", err)
	}
	if len(rows) > 0 {
		sub.ID = rows[0].String("id")
	}
	return sub, nil
}

// ListScrolls returns the catalog in store order. Rows carrying a user_id
// are submissions written to a shared collection and are skipped.
func (r *Repository) ListScrolls(ctx context.Context) ([]domain.Scroll, error) {
	rows, err := r.client.Select(ctx, ScrollsTable)
	if err != nil {
		return nil, err
	}
	scrolls := make([]domain.Scroll, 0, len(rows))
	for _, row := range rows {
		if row.String("user_id") != "" {
			continue
		}
		scrolls = append(scrolls, scrollFromRecord(row))
	}
	return scrolls, nil
}

// ListReflections returns every reflection for exactly this scroll and provider.
func (r *Repository) ListReflections(ctx context.Context, scrollName, modelName string) ([]domain.Reflection, error) {
	rows, err := r.client.Select(ctx, ReflectionsTable,
		Eq("scroll_name", scrollName),
		Eq("model_name", modelName),
	)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reflection, 0, len(rows))
	for _, row := range rows {
		out = append(out, reflectionFromRecord(row))
	}
	return out, nil
}
