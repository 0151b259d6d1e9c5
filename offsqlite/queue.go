// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobiletoly/go-offsync/offsync"
)

// Queue is the durable job queue backed by the _offsync_jobs table.
// Terminal jobs are retained as an audit trail. The pending->processing
// transition is a conditional UPDATE guarded on the current status, so
// concurrent drain passes can never both claim the same job.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewQueue prepares the queue schema and returns a Queue over db.
func NewQueue(db *sql.DB) (*Queue, error) {
	if err := Initialize(db); err != nil {
		return nil, err
	}
	return &Queue{db: db, logger: slog.Default()}, nil
}

// Enqueue appends a pending job and returns its id. This is a purely
// local durable write.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload offsync.Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize job payload: %w", err)
	}
	jobID := uuid.NewString()
	createdAt := time.Now().UTC().Format(timeLayout)

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO _offsync_jobs (job_id, job_type, payload, status, attempts, created_at)
		VALUES (?, ?, ?, 'pending', 0, ?)`,
		jobID, jobType, string(raw), createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	q.logger.Debug("job enqueued", "job", jobID, "type", jobType)
	return jobID, nil
}

// PendingJobs returns pending jobs in creation order. An empty jobTypes
// list matches every type.
func (q *Queue) PendingJobs(ctx context.Context, jobTypes ...string) ([]offsync.Job, error) {
	return q.queryJobs(ctx, `status = 'pending'`, jobTypes)
}

// History returns terminal jobs in creation order.
func (q *Queue) History(ctx context.Context, jobTypes ...string) ([]offsync.Job, error) {
	return q.queryJobs(ctx, `status IN ('completed','failed')`, jobTypes)
}

// Job returns a single job by id regardless of status.
func (q *Queue) Job(ctx context.Context, jobID string) (offsync.Job, error) {
	jobs, err := q.queryJobs(ctx, `job_id = ?`, nil, jobID)
	if err != nil {
		return offsync.Job{}, err
	}
	if len(jobs) == 0 {
		return offsync.Job{}, fmt.Errorf("job %s: %w", jobID, offsync.ErrNotFound)
	}
	return jobs[0], nil
}

// MarkProcessing atomically claims a pending job. The RowsAffected
// check is the compare-and-swap: a pass that lost the race sees zero
// rows updated.
func (q *Queue) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE _offsync_jobs SET status = 'processing'
		WHERE job_id = ? AND status = 'pending'`, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result for job %s: %w", jobID, err)
	}
	return n == 1, nil
}

// Complete moves a processing job to completed.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE _offsync_jobs SET status = 'completed'
		WHERE job_id = ? AND status = 'processing'`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return requireTransition(res, jobID, "complete")
}

// Fail moves a job to the terminal failed status. It accepts both
// processing jobs and jobs just returned to pending by
// RecordAttemptFailure, since the retry-ceiling decision is made after
// the attempt counter moves.
func (q *Queue) Fail(ctx context.Context, jobID string, reason string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE _offsync_jobs SET status = 'failed', last_error = ?
		WHERE job_id = ? AND status IN ('pending','processing')`, reason, jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	return requireTransition(res, jobID, "fail")
}

// RecordAttemptFailure increments the attempt counter, stores the error
// and returns the job to pending. It reports the post-increment count.
func (q *Queue) RecordAttemptFailure(ctx context.Context, jobID string, attemptErr error) (int, error) {
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE _offsync_jobs SET status = 'pending', attempts = attempts + 1, last_error = ?
		WHERE job_id = ? AND status = 'processing'`, msg, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt failure for job %s: %w", jobID, err)
	}
	if err := requireTransition(res, jobID, "record attempt failure"); err != nil {
		return 0, err
	}

	var attempts int
	err = q.db.QueryRowContext(ctx,
		`SELECT attempts FROM _offsync_jobs WHERE job_id = ?`, jobID,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to read attempts for job %s: %w", jobID, err)
	}
	return attempts, nil
}

func requireTransition(res sql.Result, jobID, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read %s result for job %s: %w", op, jobID, err)
	}
	if n != 1 {
		return fmt.Errorf("cannot %s job %s: not in an eligible status", op, jobID)
	}
	return nil
}

func (q *Queue) queryJobs(ctx context.Context, where string, jobTypes []string, extraArgs ...any) ([]offsync.Job, error) {
	query := `
		SELECT job_id, job_type, payload, status, attempts, COALESCE(last_error, ''), created_at
		FROM _offsync_jobs
		WHERE ` + where
	args := append([]any{}, extraArgs...)
	if len(jobTypes) > 0 {
		query += ` AND job_type IN (?` + strings.Repeat(",?", len(jobTypes)-1) + `)`
		for _, t := range jobTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []offsync.Job
	for rows.Next() {
		var job offsync.Job
		var payload, createdAt string
		if err := rows.Scan(&job.ID, &job.Type, &payload, &job.Status, &job.Attempts, &job.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to deserialize payload for job %s: %w", job.ID, err)
		}
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for job %s: %w", job.ID, err)
		}
		job.CreatedAt = ts
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}
