// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode"
)

// Operation constants for mutation intents.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// JobStatus values for the queue state machine.
//
// pending --markProcessing--> processing --complete--> completed
// processing --recordAttemptFailure--> pending (retry path)
// processing/pending --fail--> failed (terminal)
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Payload carries enough information to replay the original mutation:
// the serialized record, the local entity id and the parent id captured
// at enqueue time. Values must stay JSON-representable so the persisted
// wire shape remains stable across replay.
type Payload map[string]any

// String returns the string value stored under key, if any.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Payload keys shared by every job type.
const (
	PayloadKeyRecord   = "record"
	PayloadKeyLocalID  = "local_id"
	PayloadKeyRecordID = "record_id"
	PayloadKeyParentID = "parent_id"
)

// Job is a durable record of a mutation intent awaiting successful
// remote execution. The JSON tags define the persisted wire shape.
type Job struct {
	ID        string    `json:"job_id"`
	Type      string    `json:"type"`
	Payload   Payload   `json:"payload"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JobTypeFor derives the queue job type for an entity kind and operation,
// e.g. ("bookmark", OpCreate) -> "createBookmark".
func JobTypeFor(kind, op string) string {
	if kind == "" {
		return op
	}
	r := []rune(kind)
	r[0] = unicode.ToUpper(r[0])
	return op + string(r)
}

// recordPayload serializes rec into a replay-safe payload.
func recordPayload(rec Record) (Payload, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record for job payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to shape record payload: %w", err)
	}
	return Payload{
		PayloadKeyRecord:   m,
		PayloadKeyLocalID:  rec.RecordID(),
		PayloadKeyParentID: rec.ParentID(),
	}, nil
}
