// Package sqlitedoc implements the KV and TurnLog collaborators on a
// local SQLite file via modernc.org/sqlite (no cgo). One database file
// carries both the fact documents and the per-session turn logs.
package sqlitedoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/lethanhdat/membank/memory"
)

const busyTimeoutMs = 5000

const schemaVersion = 1

// All DDL uses IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		doc        BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE TABLE IF NOT EXISTS log_entries (
		key        TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		entry      BLOB    NOT NULL,
		created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (key, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_log_entries_key ON log_entries(key, seq)`,
}

// Store is a SQLite-backed document and log store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. The database uses
// WAL mode, a 5 s busy timeout, and a single connection, since SQLite
// serialises writes anyway. The caller closes the store when done.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to enable WAL")
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs)); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to set busy_timeout")
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return goerr.Wrap(err, "failed to create schema_version table")
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return goerr.Wrap(err, "failed to read schema version")
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to migrate schema", goerr.V("statement", stmt))
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return goerr.Wrap(err, "failed to record schema version")
	}
	return nil
}

// Get returns the document stored under key, or memory.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM documents WHERE key = ?", key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memory.ErrNotFound
		}
		return nil, goerr.Wrap(err, "failed to read document", goerr.V("key", key))
	}
	return doc, nil
}

// Put stores the document under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (key, doc, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))`,
		key, doc,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to write document", goerr.V("key", key))
	}
	return nil
}

// Delete removes the document under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("key", key))
	}
	return nil
}

// Append adds an entry to the ordered log under key. The sequence number
// is assigned inside the statement, so appends are O(1) and never
// reorder existing entries.
func (s *Store) Append(ctx context.Context, key string, entry []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries (key, seq, entry)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM log_entries WHERE key = ?), 0) + 1, ?)`,
		key, key, entry,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to append log entry", goerr.V("key", key))
	}
	return nil
}

// Scan returns the log entries under key in insertion order.
func (s *Store) Scan(ctx context.Context, key string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT entry FROM log_entries WHERE key = ? ORDER BY seq ASC", key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan log", goerr.V("key", key))
	}
	defer func() { _ = rows.Close() }()

	var entries [][]byte
	for rows.Next() {
		var entry []byte
		if err := rows.Scan(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to scan log entry", goerr.V("key", key))
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate log entries", goerr.V("key", key))
	}
	return entries, nil
}

// Clear removes the entire log under key; other keys are untouched.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM log_entries WHERE key = ?", key); err != nil {
		return goerr.Wrap(err, "failed to clear log", goerr.V("key", key))
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
