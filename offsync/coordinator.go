// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LocalStore is the durable per-kind repository the engine mutates
// synchronously. Operations fail only on storage-layer faults, which the
// Coordinator treats as fatal. Delete of an absent id is a no-op.
type LocalStore[T Record] interface {
	Get(ctx context.Context, id string) (T, error) // ErrNotFound when absent
	GetAllByParent(ctx context.Context, parentID string) ([]T, error)
	Put(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
	SetSyncFlag(ctx context.Context, id string, synced bool) error
}

// RemoteClient performs one entity kind's calls against the remote
// service. Every failure is a recoverable, retryable error; Create and
// Update return the server-canonical record (Create with the
// server-assigned identity).
type RemoteClient[T Record] interface {
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) (T, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, parentID string) ([]T, error)
}

// Coordinator makes every mutation of one entity kind appear synchronous
// and durable to the caller regardless of connectivity, while eventually
// converging local and remote state. Writes go local-first; the remote
// call is opportunistic and any remote failure is absorbed into the job
// queue, never surfaced to the caller.
type Coordinator[T Record] struct {
	kind    string
	store   LocalStore[T]
	remote  RemoteClient[T]
	oracle  ConnectivityOracle
	queue   JobQueue
	events  *Bus
	config  *Config
	logger  *slog.Logger
	metrics OpTimingRecorder

	newRecord func() T
	newID     func() string
	now       func() time.Time

	jobCreate string
	jobUpdate string
	jobDelete string
}

// CoordinatorOptions configures a Coordinator. Kind, Store, Remote,
// Queue and NewRecord are required; everything else has a default.
type CoordinatorOptions[T Record] struct {
	Kind      string // e.g. "bookmark"
	Store     LocalStore[T]
	Remote    RemoteClient[T]
	Oracle    ConnectivityOracle
	Queue     JobQueue
	Config    *Config
	Logger    *slog.Logger
	Metrics   OpTimingRecorder
	NewRecord func() T // allocates an empty record for deserialization
	NewID     func() string
	Now       func() time.Time
}

// NewCoordinator creates a Coordinator for one entity kind.
func NewCoordinator[T Record](opts CoordinatorOptions[T]) (*Coordinator[T], error) {
	if opts.Kind == "" {
		return nil, fmt.Errorf("kind must be provided")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Remote == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("job queue cannot be nil")
	}
	if opts.NewRecord == nil {
		return nil, fmt.Errorf("record factory cannot be nil")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator[T]{
		kind:      opts.Kind,
		store:     opts.Store,
		remote:    opts.Remote,
		oracle:    opts.Oracle,
		queue:     opts.Queue,
		events:    NewBus(cfg.EventBuffer),
		config:    cfg,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		newRecord: opts.NewRecord,
		newID:     opts.NewID,
		now:       opts.Now,
		jobCreate: JobTypeFor(opts.Kind, OpCreate),
		jobUpdate: JobTypeFor(opts.Kind, OpUpdate),
		jobDelete: JobTypeFor(opts.Kind, OpDelete),
	}
	if c.oracle == nil {
		c.oracle = OnlineFunc(func(context.Context) bool { return true })
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Kind returns the entity kind this coordinator owns.
func (c *Coordinator[T]) Kind() string { return c.kind }

// Events returns the coordinator's event bus.
func (c *Coordinator[T]) Events() *Bus { return c.events }

// JobTypes returns the queue job types this coordinator enqueues, in
// create/update/delete order.
func (c *Coordinator[T]) JobTypes() []string {
	return []string{c.jobCreate, c.jobUpdate, c.jobDelete}
}

// Create generates a local identifier for rec, writes it to the local
// store unconditionally and then attempts the remote create when online.
// On remote success the returned record carries the server-assigned
// identity; on failure or offline the mutation is queued and the local
// record returned. The caller is never blocked on network retries.
func (c *Coordinator[T]) Create(ctx context.Context, rec T) (out T, err error) {
	defer c.observe(ctx, OpCreate, c.now())(&err)
	var zero T

	if rec.RecordID() == "" {
		rec.SetRecordID(c.newID())
	}
	rec.SetSyncState(StateUnsynced)
	if perr := c.store.Put(ctx, rec); perr != nil {
		return zero, &StorageFault{Op: "create " + c.kind, Err: perr}
	}

	if !c.oracle.IsOnline(ctx) {
		if qerr := c.enqueueRecord(ctx, c.jobCreate, rec); qerr != nil {
			return zero, qerr
		}
		c.emit(EventCreated, rec)
		return rec, nil
	}

	serverRec, rerr := c.remote.Create(ctx, rec)
	if rerr != nil {
		c.logger.Warn("remote create failed, queued for replay",
			"kind", c.kind, "id", rec.RecordID(), "error", rerr)
		if qerr := c.enqueueRecord(ctx, c.jobCreate, rec); qerr != nil {
			return zero, qerr
		}
		c.emit(EventCreated, rec)
		return rec, nil
	}

	reconciled, rcerr := c.reconcile(ctx, rec.RecordID(), serverRec)
	if rcerr != nil {
		return zero, rcerr
	}
	c.emit(EventCreated, reconciled)
	return reconciled, nil
}

// Update applies mutate to the locally stored record, marks it unsynced
// and mirrors the Create branching. There is no identifier to reconcile:
// a successful remote call only confirms canonical field values, which
// become the new local truth. Fails with ErrNotFound when the record
// does not exist locally; no job is enqueued and no event emitted.
func (c *Coordinator[T]) Update(ctx context.Context, id string, mutate func(T)) (out T, err error) {
	defer c.observe(ctx, OpUpdate, c.now())(&err)
	var zero T

	rec, gerr := c.store.Get(ctx, id)
	if gerr != nil {
		if errors.Is(gerr, ErrNotFound) {
			return zero, fmt.Errorf("update %s %q: %w", c.kind, id, ErrNotFound)
		}
		return zero, &StorageFault{Op: "update " + c.kind, Err: gerr}
	}

	if mutate != nil {
		mutate(rec)
	}
	rec.SetRecordID(id) // identity is immutable under update
	rec.SetSyncState(StateUnsynced)
	if perr := c.store.Put(ctx, rec); perr != nil {
		return zero, &StorageFault{Op: "update " + c.kind, Err: perr}
	}

	if !c.oracle.IsOnline(ctx) {
		if qerr := c.enqueueRecord(ctx, c.jobUpdate, rec); qerr != nil {
			return zero, qerr
		}
		c.emit(EventUpdated, rec)
		return rec, nil
	}

	canonical, rerr := c.remote.Update(ctx, rec)
	if rerr != nil {
		c.logger.Warn("remote update failed, queued for replay",
			"kind", c.kind, "id", id, "error", rerr)
		if qerr := c.enqueueRecord(ctx, c.jobUpdate, rec); qerr != nil {
			return zero, qerr
		}
		c.emit(EventUpdated, rec)
		return rec, nil
	}

	canonical, werr := c.writeBackCanonical(ctx, canonical)
	if werr != nil {
		return zero, werr
	}
	c.emit(EventUpdated, canonical)
	return canonical, nil
}

// Delete removes the record locally first so callers observe the
// deletion with zero latency, then deletes remotely or queues a delete
// job. Deleting an id that is unknown locally is a no-op.
func (c *Coordinator[T]) Delete(ctx context.Context, id string) (err error) {
	defer c.observe(ctx, OpDelete, c.now())(&err)

	rec, gerr := c.store.Get(ctx, id)
	if gerr != nil {
		if errors.Is(gerr, ErrNotFound) {
			return nil
		}
		return &StorageFault{Op: "delete " + c.kind, Err: gerr}
	}
	if derr := c.store.Delete(ctx, id); derr != nil {
		return &StorageFault{Op: "delete " + c.kind, Err: derr}
	}
	c.emit(EventDeleted, rec)

	// An unsynced record may still carry its local-temp identity, which
	// the remote does not know yet. Queue the delete behind whatever job
	// introduced the record; FIFO replay resolves the identity.
	if rec.SyncState() == StateUnsynced || !c.oracle.IsOnline(ctx) {
		return c.enqueueDelete(ctx, id, rec.ParentID())
	}
	if rerr := c.remote.Delete(ctx, id); rerr != nil {
		c.logger.Warn("remote delete failed, queued for replay",
			"kind", c.kind, "id", id, "error", rerr)
		return c.enqueueDelete(ctx, id, rec.ParentID())
	}
	return nil
}

// ReplayPendingJobs drains this kind's pending jobs in enqueue order.
// Each job is claimed through MarkProcessing (a concurrent pass that
// loses the claim race skips the job), replayed against the remote
// service, and completed or returned to pending with an incremented
// attempt count. A job that reaches the attempt ceiling is forced to
// failed with a message embedding the last error. One job's failure
// never aborts replay of subsequent jobs.
func (c *Coordinator[T]) ReplayPendingJobs(ctx context.Context) (err error) {
	defer c.observe(ctx, "replay", c.now())(&err)

	jobs, qerr := c.queue.PendingJobs(ctx, c.jobCreate, c.jobUpdate, c.jobDelete)
	if qerr != nil {
		return &StorageFault{Op: "replay " + c.kind, Err: qerr}
	}

	// Local-temp ids reconciled during this pass, so that update and
	// delete jobs queued behind a create target the server identity.
	aliases := make(map[string]string)
	// Record ids whose job failed an attempt during this pass. Jobs
	// queued behind them are held, unclaimed and with no attempt burned:
	// replaying a delete or update while the create for the same id is
	// still pending would target an identity the server does not know.
	held := make(map[string]struct{})

	for i := range jobs {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		job := &jobs[i]

		targetID := jobTargetID(job)
		if _, blocked := held[targetID]; blocked && targetID != "" {
			c.logger.Debug("job held behind failed predecessor",
				"kind", c.kind, "job", job.ID, "type", job.Type, "id", targetID)
			continue
		}

		claimed, merr := c.queue.MarkProcessing(ctx, job.ID)
		if merr != nil {
			return &StorageFault{Op: "replay " + c.kind, Err: merr}
		}
		if !claimed {
			continue // claimed by a superseding pass
		}

		rerr := c.replayJob(ctx, job, aliases)
		if rerr == nil {
			if cerr := c.queue.Complete(ctx, job.ID); cerr != nil {
				return &StorageFault{Op: "replay " + c.kind, Err: cerr}
			}
			continue
		}
		if targetID != "" {
			held[targetID] = struct{}{}
		}

		attempts, aerr := c.queue.RecordAttemptFailure(ctx, job.ID, rerr)
		if aerr != nil {
			return &StorageFault{Op: "replay " + c.kind, Err: aerr}
		}
		if attempts >= c.config.MaxAttempts {
			reason := fmt.Sprintf("%v after %d attempts: %v", ErrMaxAttempts, attempts, rerr)
			if ferr := c.queue.Fail(ctx, job.ID, reason); ferr != nil {
				return &StorageFault{Op: "replay " + c.kind, Err: ferr}
			}
			c.logger.Error("job abandoned",
				"kind", c.kind, "job", job.ID, "type", job.Type,
				"attempts", attempts, "error", rerr)
		} else {
			c.logger.Warn("job attempt failed",
				"kind", c.kind, "job", job.ID, "type", job.Type,
				"attempts", attempts, "error", rerr)
		}
	}
	return nil
}

// jobTargetID extracts the record id a job operates on: the enqueue-time
// record id for create/update jobs, the deleted id for delete jobs.
func jobTargetID(job *Job) string {
	if id, ok := job.Payload.String(PayloadKeyLocalID); ok && id != "" {
		return id
	}
	if id, ok := job.Payload.String(PayloadKeyRecordID); ok {
		return id
	}
	return ""
}

// replayJob performs the remote call described by the job payload.
// aliases maps local-temp ids to the server ids assigned earlier in the
// same pass.
func (c *Coordinator[T]) replayJob(ctx context.Context, job *Job, aliases map[string]string) error {
	switch job.Type {
	case c.jobCreate:
		rec, err := c.recordFromPayload(job.Payload)
		if err != nil {
			return err
		}
		serverRec, err := c.remote.Create(ctx, rec)
		if err != nil {
			return err
		}
		localID, _ := job.Payload.String(PayloadKeyLocalID)
		if localID == "" {
			localID = rec.RecordID()
		}
		reconciled, err := c.reconcile(ctx, localID, serverRec)
		if err != nil {
			return err
		}
		aliases[localID] = reconciled.RecordID()
		// The caller already saw "created" with the local id; the replay
		// event communicates the identity swap.
		c.emit(EventUpdated, reconciled)
		return nil

	case c.jobUpdate:
		rec, err := c.recordFromPayload(job.Payload)
		if err != nil {
			return err
		}
		if server, ok := aliases[rec.RecordID()]; ok {
			rec.SetRecordID(server)
		}
		canonical, err := c.remote.Update(ctx, rec)
		if err != nil {
			return err
		}
		// Write the canonical fields back only while the record still
		// exists locally; resurrecting a record deleted after this job
		// was queued would break the one-record invariant.
		if _, gerr := c.store.Get(ctx, rec.RecordID()); gerr != nil {
			if errors.Is(gerr, ErrNotFound) {
				return nil
			}
			return gerr
		}
		canonical, err = c.writeBackCanonical(ctx, canonical)
		if err != nil {
			return err
		}
		c.emit(EventUpdated, canonical)
		return nil

	case c.jobDelete:
		id, _ := job.Payload.String(PayloadKeyRecordID)
		if id == "" {
			return fmt.Errorf("delete job %s has no record id", job.ID)
		}
		if server, ok := aliases[id]; ok {
			id = server
		}
		if err := c.remote.Delete(ctx, id); err != nil {
			return err
		}
		// A create replayed earlier in the pass may have rewritten the
		// record locally; clear it so the delete stays final.
		if derr := c.store.Delete(ctx, id); derr != nil && !errors.Is(derr, ErrNotFound) {
			return derr
		}
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// writeBackCanonical stores the server's field values as the new local
// truth and marks the record synced.
func (c *Coordinator[T]) writeBackCanonical(ctx context.Context, canonical T) (T, error) {
	var zero T
	canonical.SetSyncState(StateSynced)
	if err := c.store.Put(ctx, canonical); err != nil {
		return zero, &StorageFault{Op: "write back " + c.kind, Err: err}
	}
	return canonical, nil
}

func (c *Coordinator[T]) enqueueRecord(ctx context.Context, jobType string, rec T) error {
	payload, err := recordPayload(rec)
	if err != nil {
		return &StorageFault{Op: "enqueue " + jobType, Err: err}
	}
	if _, err := c.queue.Enqueue(ctx, jobType, payload); err != nil {
		return &StorageFault{Op: "enqueue " + jobType, Err: err}
	}
	return nil
}

func (c *Coordinator[T]) enqueueDelete(ctx context.Context, id, parentID string) error {
	payload := Payload{
		PayloadKeyRecordID: id,
		PayloadKeyParentID: parentID,
	}
	if _, err := c.queue.Enqueue(ctx, c.jobDelete, payload); err != nil {
		return &StorageFault{Op: "enqueue " + c.jobDelete, Err: err}
	}
	return nil
}

func (c *Coordinator[T]) recordFromPayload(p Payload) (T, error) {
	var zero T
	m, ok := p[PayloadKeyRecord]
	if !ok {
		return zero, fmt.Errorf("job payload has no record")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return zero, fmt.Errorf("failed to reshape record payload: %w", err)
	}
	rec := c.newRecord()
	if err := json.Unmarshal(raw, rec); err != nil {
		return zero, fmt.Errorf("failed to deserialize %s record: %w", c.kind, err)
	}
	return rec, nil
}

func (c *Coordinator[T]) emit(kind EventKind, rec T) {
	c.events.Emit(Event{Kind: kind, Record: rec, Timestamp: c.now()})
}

// observe reports one operation timing to the optional recorder.
func (c *Coordinator[T]) observe(ctx context.Context, op string, start time.Time) func(*error) {
	return func(errp *error) {
		if c.metrics == nil {
			return
		}
		c.metrics.ObserveOp(ctx, OpTiming{
			Kind:     c.kind,
			Op:       op,
			Duration: c.now().Sub(start),
			Error:    errp != nil && *errp != nil,
		})
	}
}
