// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mobiletoly/go-offsync/offsync"
)

// Store is a SQLite-backed local repository for one entity kind. Each
// row keeps the full record as a JSON payload next to the columns the
// engine queries on (parent, sync state, creation time).
type Store[T offsync.Record] struct {
	db        *sql.DB
	table     string
	newRecord func() T
}

// NewStore creates (if needed) the record table for kind and returns a
// store bound to it. The table is named "<kind>_records".
func NewStore[T offsync.Record](db *sql.DB, kind string, newRecord func() T) (*Store[T], error) {
	if newRecord == nil {
		return nil, fmt.Errorf("record factory cannot be nil")
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	table := kind + "_records"

	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s" (
			id         TEXT PRIMARY KEY,
			parent_id  TEXT NOT NULL,
			sync_state TEXT NOT NULL CHECK (sync_state IN ('synced','unsynced')),
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	_, err = db.Exec(fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS "idx_%s_parent"
		ON "%s" (parent_id, created_at)`, table, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create index for %s: %w", table, err)
	}

	return &Store[T]{db: db, table: table, newRecord: newRecord}, nil
}

// Get returns the record with the given id, or offsync.ErrNotFound.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	var payload string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT payload FROM "%s" WHERE id = ?`, s.table), id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, offsync.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	return s.decode(payload)
}

// GetAllByParent returns the records under parentID in creation order.
func (s *Store[T]) GetAllByParent(ctx context.Context, parentID string) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT payload FROM "%s" WHERE parent_id = ? ORDER BY created_at, id`, s.table),
		parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by parent: %w", s.table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.table, err)
		}
		rec, err := s.decode(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", s.table, err)
	}
	return records, nil
}

// Put inserts or replaces the record. The stored creation time is taken
// from the record so FIFO ordering survives reconciliation rewrites.
func (s *Store[T]) Put(ctx context.Context, rec T) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize %s record: %w", s.table, err)
	}
	createdAt := rec.CreatedTime()
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	now := time.Now().UTC().Format(timeLayout)

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO "%s" (id, parent_id, sync_state, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id  = excluded.parent_id,
			sync_state = excluded.sync_state,
			payload    = excluded.payload,
			updated_at = excluded.updated_at`, s.table),
		rec.RecordID(), rec.ParentID(), string(rec.SyncState()), string(raw),
		createdAt.UTC().Format(timeLayout), now)
	if err != nil {
		return fmt.Errorf("failed to put %s record: %w", s.table, err)
	}
	return nil
}

// Delete removes the record with the given id; absent ids are a no-op.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM "%s" WHERE id = ?`, s.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", s.table, err)
	}
	return nil
}

// SetSyncFlag updates the record's sync state, both the indexed column
// and the embedded payload copy.
func (s *Store[T]) SetSyncFlag(ctx context.Context, id string, synced bool) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	state := offsync.StateUnsynced
	if synced {
		state = offsync.StateSynced
	}
	rec.SetSyncState(state)
	return s.Put(ctx, rec)
}

func (s *Store[T]) decode(payload string) (T, error) {
	var zero T
	rec := s.newRecord()
	if err := json.Unmarshal([]byte(payload), rec); err != nil {
		return zero, fmt.Errorf("failed to deserialize %s record: %w", s.table, err)
	}
	return rec, nil
}
