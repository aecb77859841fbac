package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteSchema lists the columns of every hosted collection in select order.
var sqliteSchema = map[string][]string{
	UsersTable:       {"id", "name", "email", "scroll_count", "created_at", "updated_at"},
	ScrollsTable:     {"id", "title", "text", "user_id", "bridged_to", "created_at"},
	SubmissionsTable: {"id", "user_id", "title", "text", "bridged_to", "created_at"},
	ReflectionsTable: {"id", "scroll_name", "model_name", "reflection_text", "created_at"},
}

// SQLiteStore implements Client using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to avoid SQLITE_BUSY
	now     func() time.Time
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

var (
	_ Client      = (*SQLiteStore)(nil)
	_ Incrementer = (*SQLiteStore)(nil)
)

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		scroll_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS scrolls (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		user_id TEXT,
		bridged_to TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scroll_submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		bridged_to TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_user ON scroll_submissions(user_id);

	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		scroll_name TEXT NOT NULL,
		model_name TEXT NOT NULL,
		reflection_text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_pair ON reflections(scroll_name, model_name);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func columnsOf(collection string) ([]string, error) {
	cols, ok := sqliteSchema[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return cols, nil
}

func checkColumns(collection string, cols []string, names []string) error {
	for _, name := range names {
		if !slices.Contains(cols, name) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, collection, name)
		}
	}
	return nil
}

func whereClause(filters []Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.Column+" = ?")
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func filterColumns(filters []Filter) []string {
	names := make([]string, 0, len(filters))
	for _, f := range filters {
		names = append(names, f.Column)
	}
	return names
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return wrapErr("ping", "", s.db.PingContext(ctx))
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return wrapErr("close", "", fmt.Errorf("close database: %w", err))
	}
	return nil
}

// Select returns matching records in insertion order.
func (s *SQLiteStore) Select(ctx context.Context, collection string, filters ...Filter) ([]Record, error) {
	rows, err := s.selectRows(ctx, collection, filters)
	return rows, wrapErr("select", collection, err)
}

func (s *SQLiteStore) selectRows(ctx context.Context, collection string, filters []Filter) ([]Record, error) {
	cols, err := columnsOf(collection)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(collection, cols, filterColumns(filters)); err != nil {
		return nil, err
	}

	where, args := whereClause(filters)
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + collection + where + " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", "collection", collection, "error", closeErr)
		}
	}()

	var out []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// Insert creates a record, assigning id and timestamps when absent.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, record Record) ([]Record, error) {
	cols, err := columnsOf(collection)
	if err != nil {
		return nil, wrapErr("insert", collection, err)
	}

	rec := record.clone()
	if rec.String("id") == "" {
		rec["id"] = uuid.NewString()
	}
	now := s.now().Unix()
	for _, ts := range []string{"created_at", "updated_at"} {
		if _, ok := rec[ts]; !ok && slices.Contains(cols, ts) {
			rec[ts] = now
		}
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	if err := checkColumns(collection, cols, keys); err != nil {
		return nil, wrapErr("insert", collection, err)
	}

	names := make([]string, 0, len(rec))
	for _, col := range cols {
		if _, ok := rec[col]; ok {
			names = append(names, col)
		}
	}

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, rec[name])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := "INSERT INTO " + collection + " (" + strings.Join(names, ", ") + ") VALUES (" + placeholders + ")"

	s.writeMu.Lock()
	_, err = s.db.ExecContext(ctx, query, args...)
	s.writeMu.Unlock()
	if err != nil {
		return nil, wrapErr("insert", collection, fmt.Errorf("insert %s: %w", collection, err))
	}

	return s.Select(ctx, collection, Eq("id", rec["id"]))
}

// Update applies patch to every matching record.
func (s *SQLiteStore) Update(ctx context.Context, collection string, patch Record, filters ...Filter) ([]Record, error) {
	cols, err := columnsOf(collection)
	if err != nil {
		return nil, wrapErr("update", collection, err)
	}
	names := make([]string, 0, len(patch))
	for k := range patch {
		names = append(names, k)
	}
	slices.Sort(names)
	if err := checkColumns(collection, cols, names); err != nil {
		return nil, wrapErr("update", collection, err)
	}
	if len(names) == 0 {
		return s.Select(ctx, collection, filters...)
	}

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		sets = append(sets, name+" = ?")
		args = append(args, patch[name])
	}
	if _, ok := patch["updated_at"]; !ok && slices.Contains(cols, "updated_at") {
		sets = append(sets, "updated_at = ?")
		args = append(args, s.now().Unix())
	}

	return s.updateMatching(ctx, "update", collection, strings.Join(sets, ", "), args, filters)
}

// Increment adds one to column on every matching record in a single statement.
func (s *SQLiteStore) Increment(ctx context.Context, collection, column string, filters ...Filter) ([]Record, error) {
	cols, err := columnsOf(collection)
	if err != nil {
		return nil, wrapErr("increment", collection, err)
	}
	if err := checkColumns(collection, cols, []string{column}); err != nil {
		return nil, wrapErr("increment", collection, err)
	}

	set := column + " = " + column + " + 1"
	var args []any
	if slices.Contains(cols, "updated_at") {
		set += ", updated_at = ?"
		args = append(args, s.now().Unix())
	}
	return s.updateMatching(ctx, "increment", collection, set, args, filters)
}

// updateMatching resolves the ids matching filters first so the affected
// rows can be returned even when the patch changes a filtered column.
func (s *SQLiteStore) updateMatching(ctx context.Context, op, collection, set string, setArgs []any, filters []Filter) ([]Record, error) {
	matched, err := s.selectRows(ctx, collection, filters)
	if err != nil {
		return nil, wrapErr(op, collection, err)
	}
	if len(matched) == 0 {
		slog.Warn("Store update affected 0 rows", "collection", collection, "op", op)
		return nil, nil
	}

	ids := make([]any, 0, len(matched))
	for _, rec := range matched {
		ids = append(ids, rec["id"])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := "UPDATE " + collection + " SET " + set + " WHERE id IN (" + placeholders + ")"
	args := append(append([]any{}, setArgs...), ids...)

	s.writeMu.Lock()
	_, err = s.db.ExecContext(ctx, query, args...)
	s.writeMu.Unlock()
	if err != nil {
		return nil, wrapErr(op, collection, fmt.Errorf("%s %s: %w", op, collection, err))
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rows, err := s.selectRows(ctx, collection, []Filter{Eq("id", id)})
		if err != nil {
			return nil, wrapErr(op, collection, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
