package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "whisper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteInsertSelect(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rows, err := s.Insert(ctx, UsersTable, Record{"name": "A", "email": "a@x.com", "scroll_count": int64(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].String("id"))
	assert.Equal(t, "A", rows[0].String("name"))

	got, err := s.Select(ctx, UsersTable, Eq("email", "a@x.com"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	n, err := got[0].Int("scroll_count")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteSelectKeepsInsertionOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, title := range []string{"Freedom", "Discernment", "Goodness"} {
		_, err := s.Insert(ctx, ScrollsTable, Record{"title": title, "text": title + " text"})
		require.NoError(t, err)
	}

	rows, err := s.Select(ctx, ScrollsTable)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Freedom", rows[0].String("title"))
	assert.Equal(t, "Goodness", rows[2].String("title"))
	assert.Empty(t, rows[0].String("user_id"))
}

func TestSQLiteUpdateReturnsAffectedRows(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rows, err := s.Insert(ctx, UsersTable, Record{"name": "A", "email": "a@x.com", "scroll_count": int64(4)})
	require.NoError(t, err)
	id := rows[0].String("id")

	updated, err := s.Update(ctx, UsersTable, Record{"scroll_count": int64(5)}, Eq("id", id))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	n, err := updated[0].Int("scroll_count")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	none, err := s.Update(ctx, UsersTable, Record{"scroll_count": int64(9)}, Eq("id", "missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteIncrement(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rows, err := s.Insert(ctx, UsersTable, Record{"name": "A", "email": "a@x.com", "scroll_count": int64(29)})
	require.NoError(t, err)

	got, err := s.Increment(ctx, UsersTable, "scroll_count", Eq("id", rows[0].String("id")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	n, err := got[0].Int("scroll_count")
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
}

func TestSQLiteRejectsUnknownNames(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.Select(ctx, "secrets")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = s.Select(ctx, UsersTable, Eq("email; DROP TABLE users", "x"))
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = s.Insert(ctx, UsersTable, Record{"email": "a@x.com", "role": "admin"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestOpenSelectsBackend(t *testing.T) {
	c, err := Open("memory:", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, c)

	c, err = Open("sqlite:"+filepath.Join(t.TempDir(), "wb.db"), "", 0)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, c)
	require.NoError(t, c.Close())

	c, err = Open("https://project.example.co", "anon-key", 0)
	require.NoError(t, err)
	assert.IsType(t, &RESTClient{}, c)

	_, err = Open("ftp://nope", "k", 0)
	assert.Error(t, err)
}
