// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docsync

import (
	"time"

	"github.com/mobiletoly/go-offsync/offsync"
)

// Comment is an annotation anchored to a span of a document.
type Comment struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Author     string            `json:"author"`
	Body       string            `json:"body"`
	Anchor     string            `json:"anchor,omitempty"`
	State      offsync.SyncState `json:"sync_state"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewComment constructs an unsynced comment.
func NewComment(documentID, author, body string) *Comment {
	now := time.Now().UTC()
	return &Comment{
		DocumentID: documentID,
		Author:     author,
		Body:       body,
		State:      offsync.StateUnsynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (c *Comment) RecordID() string                 { return c.ID }
func (c *Comment) SetRecordID(id string)            { c.ID = id }
func (c *Comment) ParentID() string                 { return c.DocumentID }
func (c *Comment) SyncState() offsync.SyncState     { return c.State }
func (c *Comment) SetSyncState(s offsync.SyncState) { c.State = s }
func (c *Comment) CreatedTime() time.Time           { return c.CreatedAt }
