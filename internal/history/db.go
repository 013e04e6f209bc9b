// Package history persists download records in sqlite and feeds an
// observable change stream.
package history

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the sqlite database at path and runs
// migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The pure Go driver serializes writes itself, but a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the history schema. Statements are idempotent.
func Migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			post_url TEXT NOT NULL,
			author_name TEXT,
			author_handle TEXT,
			text TEXT,
			downloaded_at DATETIME NOT NULL,
			thumbnail_path TEXT,
			media_url TEXT NOT NULL,
			media_kind TEXT NOT NULL,
			storage_pointer TEXT NOT NULL,
			media_index INTEGER NOT NULL,
			media_count INTEGER NOT NULL,
			UNIQUE(post_id, media_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_downloaded_at ON records(downloaded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_records_post_id ON records(post_id)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	return nil
}
