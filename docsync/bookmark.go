// Package docsync wires the offline sync engine for the entity kinds of
// the document-management client: bookmarks, comments and libraries.
//
// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docsync

import (
	"time"

	"github.com/mobiletoly/go-offsync/offsync"
)

// Bookmark marks a position in a document.
type Bookmark struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Page       int               `json:"page"`
	State      offsync.SyncState `json:"sync_state"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewBookmark constructs an unsynced bookmark; the engine assigns the
// local identifier on create.
func NewBookmark(documentID, title string, page int) *Bookmark {
	now := time.Now().UTC()
	return &Bookmark{
		DocumentID: documentID,
		Title:      title,
		Page:       page,
		State:      offsync.StateUnsynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (b *Bookmark) RecordID() string                   { return b.ID }
func (b *Bookmark) SetRecordID(id string)              { b.ID = id }
func (b *Bookmark) ParentID() string                   { return b.DocumentID }
func (b *Bookmark) SyncState() offsync.SyncState       { return b.State }
func (b *Bookmark) SetSyncState(s offsync.SyncState)   { b.State = s }
func (b *Bookmark) CreatedTime() time.Time             { return b.CreatedAt }
