// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import "context"

// JobQueue is a durable, ordered queue of pending mutation intents. It
// exclusively owns job lifecycle transitions; Coordinators only create
// jobs and drive the drain loop through this API.
type JobQueue interface {
	// Enqueue appends a pending job. It is a durable local write and
	// never blocks on the network.
	Enqueue(ctx context.Context, jobType string, payload Payload) (jobID string, err error)

	// PendingJobs returns jobs with status pending in creation order
	// (FIFO within a type, no cross-type priority). An empty jobTypes
	// list matches every type.
	PendingJobs(ctx context.Context, jobTypes ...string) ([]Job, error)

	// MarkProcessing atomically moves a job from pending to processing.
	// It is the mutual-exclusion point of the drain loop: exactly one
	// caller observes claimed == true for a given pending job.
	MarkProcessing(ctx context.Context, jobID string) (claimed bool, err error)

	// Complete moves a processing job to the terminal completed status.
	Complete(ctx context.Context, jobID string) error

	// Fail moves a job to the terminal failed status, recording reason.
	Fail(ctx context.Context, jobID string, reason string) error

	// RecordAttemptFailure increments the job's attempt counter, stores
	// the error and returns the job to pending so it stays eligible for
	// the next drain cycle. It reports the post-increment attempt count
	// so the caller can decide to Fail at the retry ceiling.
	RecordAttemptFailure(ctx context.Context, jobID string, attemptErr error) (attempts int, err error)

	// History returns terminal (completed or failed) jobs in creation
	// order, for whoever inspects job outcomes after the fact.
	History(ctx context.Context, jobTypes ...string) ([]Job, error)
}
