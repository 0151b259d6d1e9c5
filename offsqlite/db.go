// Package offsqlite persists the offline sync engine's records and job
// queue in a local SQLite database.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsqlite

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is the column format for timestamps. The fraction is
// fixed-width (never trimmed) so that lexicographic order matches
// chronological order, which the FIFO queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Open opens (creating if needed) the SQLite database at path and
// prepares the sync metadata schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Initialize(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Initialize enables WAL mode and foreign keys and creates the job
// queue table. Record tables are created per kind by NewStore.
func Initialize(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _offsync_jobs (
			job_id     TEXT PRIMARY KEY,
			job_type   TEXT NOT NULL,
			payload    TEXT NOT NULL, -- JSON captured at enqueue time
			status     TEXT NOT NULL DEFAULT 'pending'
			           CHECK (status IN ('pending','processing','completed','failed')),
			attempts   INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create job table: %w", err)
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_offsync_jobs_status
		ON _offsync_jobs (status, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create job index: %w", err)
	}
	return nil
}

func validateKind(kind string) error {
	if !kindPattern.MatchString(kind) {
		return fmt.Errorf("invalid entity kind %q", kind)
	}
	return nil
}
