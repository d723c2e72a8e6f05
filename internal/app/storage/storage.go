// Package storage is the persistence collaborator of the engine.
//
// It stores snapshots keyed by their capture time, cached item
// metadata and the tracker state. No other package accesses the
// database directly. Market prices are deliberately not stored:
// valuations always use freshly fetched prices.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/krashnark/gw2tracker/internal/app"
)

var schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		captured_at DATETIME NOT NULL UNIQUE,
		data BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS snapshots_captured_at_idx ON snapshots (captured_at DESC);

	CREATE TABLE IF NOT EXISTS item_infos (
		id INTEGER PRIMARY KEY NOT NULL,
		name TEXT NOT NULL,
		vendor_value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	);
`

// InitDB initializes the database and returns the handle.
func InitDB(dataSourceName string) (*sql.DB, error) {
	v := url.Values{}
	v.Add("_fk", "on")
	v.Add("_journal_mode", "WAL")
	v.Add("_synchronous", "normal")
	dsn := fmt.Sprintf("%s?%s", dataSourceName, v.Encode())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Connected to database", "dsn", dataSourceName)
	return db, nil
}

// ApplyMigrations creates or updates the database schema.
func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Storage provides access to the persistent storage of the app.
type Storage struct {
	db *sql.DB
}

// New returns a new storage. The database must already be initialized.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// GetSetting returns the value of a setting key.
func (st *Storage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := st.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = app.ErrNotFound
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores the value of a setting key, replacing any previous value.
func (st *Storage) SetSetting(ctx context.Context, key, value string) error {
	_, err := st.db.ExecContext(
		ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = ?",
		key, value, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting key. Removing a missing key is not an error.
func (st *Storage) DeleteSetting(ctx context.Context, key string) error {
	if _, err := st.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
