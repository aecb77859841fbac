package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertAssignsID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rows, err := m.Insert(ctx, UsersTable, Record{"email": "a@x.com", "scroll_count": int64(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].String("id"))

	// Mutating the returned copy does not leak into the store.
	rows[0]["email"] = "changed"
	got, err := m.Select(ctx, UsersTable, Eq("email", "a@x.com"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemorySelectFiltersAreConjunctive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, r := range []Record{
		{"scroll_name": "Freedom", "model_name": "Claude", "reflection_text": "a"},
		{"scroll_name": "Freedom", "model_name": "Grok", "reflection_text": "b"},
		{"scroll_name": "Goodness", "model_name": "Claude", "reflection_text": "c"},
	} {
		_, err := m.Insert(ctx, ReflectionsTable, r)
		require.NoError(t, err)
	}

	rows, err := m.Select(ctx, ReflectionsTable, Eq("scroll_name", "Freedom"), Eq("model_name", "Claude"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].String("reflection_text"))
}

func TestMemoryUpdateAndIncrement(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rows, err := m.Insert(ctx, UsersTable, Record{"email": "a@x.com", "scroll_count": int64(3)})
	require.NoError(t, err)
	id := rows[0].String("id")

	updated, err := m.Update(ctx, UsersTable, Record{"scroll_count": int64(7)}, Eq("id", id))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	n, err := updated[0].Int("scroll_count")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	incremented, err := m.Increment(ctx, UsersTable, "scroll_count", Eq("id", id))
	require.NoError(t, err)
	require.Len(t, incremented, 1)
	n, err = incremented[0].Int("scroll_count")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Select(ctx, UsersTable)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "select", se.Op)
	assert.ErrorIs(t, err, context.Canceled)
}
