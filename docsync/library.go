// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docsync

import (
	"time"

	"github.com/mobiletoly/go-offsync/offsync"
)

// Library is a named collection of documents owned by an account.
type Library struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	State       offsync.SyncState `json:"sync_state"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewLibrary constructs an unsynced library.
func NewLibrary(ownerID, name, description string) *Library {
	now := time.Now().UTC()
	return &Library{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		State:       offsync.StateUnsynced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (l *Library) RecordID() string                 { return l.ID }
func (l *Library) SetRecordID(id string)            { l.ID = id }
func (l *Library) ParentID() string                 { return l.OwnerID }
func (l *Library) SyncState() offsync.SyncState     { return l.State }
func (l *Library) SetSyncState(s offsync.SyncState) { l.State = s }
func (l *Library) CreatedTime() time.Time           { return l.CreatedAt }
