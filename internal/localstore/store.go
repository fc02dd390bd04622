// Package localstore is a small SQLite-backed key-value store for client state
// that must survive restarts.
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/scribe/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store defines the key-value operations used by the client.
type Store interface {
	Get(key string) (string, time.Time, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

var _ Store = (*DB)(nil)

// DB wraps a sql.DB holding the kv table.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("localstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.conn.Close() }

// Get returns the value stored under key and when it was written.
// A missing key yields apperr.ErrNotFound.
func (d *DB) Get(key string) (string, time.Time, error) {
	var value string
	var updated time.Time
	err := d.conn.QueryRow(`SELECT value, updated_at FROM kv WHERE key = ?`, key).Scan(&value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, apperr.ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return value, updated, nil
}

// Set stores value under key, replacing any previous value.
func (d *DB) Set(key, value string) error {
	_, err := d.conn.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, d.now().UTC())
	if err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	if _, err := d.conn.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", key, err)
	}
	return nil
}
