// Package history persists question/answer exchanges in a local SQLite
// database. Each namespace has its own thread, so a namespace's recent
// answers can be replayed across server restarts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one recorded question/answer exchange.
type Entry struct {
	// Question is the question as asked.
	Question string
	// Answer is the model's answer.
	Answer string
	// Sources lists the document sources the answer drew on.
	Sources []string
	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time
}

// Store persists and retrieves exchanges keyed by namespace.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists a single exchange for the given namespace.
	Append(ctx context.Context, namespace, question, answer string, sources []string) error
	// Recent returns the most recent n exchanges for the namespace, ordered
	// oldest-first. If fewer than n exist, all are returned.
	Recent(ctx context.Context, namespace string, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database. It
// resolves to ~/.docrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS qa_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    namespace    TEXT    NOT NULL,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL DEFAULT '[]',  -- JSON array of source paths
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_qa_history_namespace_created
    ON qa_history (namespace, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists a single exchange for the given namespace.
func (s *SQLiteStore) Append(ctx context.Context, namespace, question, answer string, sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("history: encode sources: %w", err)
	}

	const q = `INSERT INTO qa_history (namespace, question, answer, sources, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, namespace, question, answer, string(encoded), time.Now().Unix()); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n exchanges for the namespace, ordered
// oldest-first. Uses a subquery to select the tail then re-order for display.
func (s *SQLiteStore) Recent(ctx context.Context, namespace string, n int) ([]Entry, error) {
	const q = `
SELECT question, answer, sources, created_at FROM (
    SELECT id, question, answer, sources, created_at
    FROM   qa_history
    WHERE  namespace = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, namespace, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sources string
		var ts int64
		if err := rows.Scan(&e.Question, &e.Answer, &sources, &ts); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("history: decode sources: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
