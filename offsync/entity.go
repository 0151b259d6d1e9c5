// Package offsync is the offline-first synchronization core shared by the
// entity services of a document-management client. Every mutation is
// committed locally before any remote attempt; remote failures are absorbed
// into a durable job queue and replayed once connectivity returns.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import "time"

// SyncState tells whether a local record matches the server's copy.
type SyncState string

const (
	StateSynced   SyncState = "synced"
	StateUnsynced SyncState = "unsynced"
)

// Record is implemented by every entity kind managed by a Coordinator.
// A record's identity starts as a locally generated value and may be
// replaced by a server-assigned one during reconciliation; at any moment
// exactly one local record exists per logical entity.
type Record interface {
	RecordID() string
	SetRecordID(id string)

	// ParentID groups records under their owning aggregate
	// (e.g. the document a bookmark belongs to).
	ParentID() string

	SyncState() SyncState
	SetSyncState(state SyncState)

	CreatedTime() time.Time
}
