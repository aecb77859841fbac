package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Client. Collections are created on first
// insert; every record gets a string id when it has none.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Record)}
}

var (
	_ Client      = (*MemoryStore)(nil)
	_ Incrementer = (*MemoryStore)(nil)
)

// Select returns copies of the matching records in insertion order.
func (m *MemoryStore) Select(ctx context.Context, collection string, filters ...Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("select", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.collections[collection] {
		if rec.matches(filters) {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

// Insert stores a copy of record.
func (m *MemoryStore) Insert(ctx context.Context, collection string, record Record) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("insert", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := record.clone()
	if rec.String("id") == "" {
		rec["id"] = uuid.NewString()
	}
	m.collections[collection] = append(m.collections[collection], rec)
	return []Record{rec.clone()}, nil
}

// Update applies patch to every matching record.
func (m *MemoryStore) Update(ctx context.Context, collection string, patch Record, filters ...Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("update", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.collections[collection] {
		if !rec.matches(filters) {
			continue
		}
		for k, v := range patch {
			rec[k] = v
		}
		out = append(out, rec.clone())
	}
	return out, nil
}

// Increment adds one to column on every matching record under the store lock.
func (m *MemoryStore) Increment(ctx context.Context, collection, column string, filters ...Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("increment", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.collections[collection] {
		if !rec.matches(filters) {
			continue
		}
		n, err := rec.Int(column)
		if err != nil {
			return nil, wrapErr("increment", collection, err)
		}
		rec[column] = n + 1
		out = append(out, rec.clone())
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
