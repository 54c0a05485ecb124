// Package sqlite implements the durable local cache store on a
// single-process SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the SQLite database and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps readers unblocked while a sync writes records.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	wrapped := &DB{DB: db}
	if err := wrapped.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return wrapped, nil
}

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cached_groups (
			group_id   INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			emoji      TEXT NOT NULL DEFAULT '',
			is_default INTEGER NOT NULL DEFAULT 0,
			position   INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS cached_items (
			group_id       INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			item_id        INTEGER NOT NULL,
			company_id     INTEGER NOT NULL,
			company_name   TEXT NOT NULL DEFAULT '',
			sector         TEXT NOT NULL DEFAULT '',
			last_price     TEXT NOT NULL DEFAULT '0',
			percent_change TEXT NOT NULL DEFAULT '0',
			position       INTEGER NOT NULL,
			PRIMARY KEY (group_id, symbol)
		)`,

		`CREATE TABLE IF NOT EXISTS symbol_flags (
			symbol TEXT PRIMARY KEY,
			flag   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			status        TEXT NOT NULL,
			context       TEXT NOT NULL DEFAULT '',
			result        TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_symbol_created ON analysis_jobs(symbol, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS profile_settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sync_state (
			cache_key TEXT PRIMARY KEY,
			synced_at INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
