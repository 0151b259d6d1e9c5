// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// note is the entity kind used by the package tests.
type note struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	State     SyncState `json:"sync_state"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *note) RecordID() string             { return n.ID }
func (n *note) SetRecordID(id string)        { n.ID = id }
func (n *note) ParentID() string             { return n.DocID }
func (n *note) SyncState() SyncState         { return n.State }
func (n *note) SetSyncState(state SyncState) { n.State = state }
func (n *note) CreatedTime() time.Time       { return n.CreatedAt }

// memStore is an in-memory LocalStore that logs its mutations so tests
// can assert on operation order.
type memStore struct {
	mu    sync.Mutex
	recs  map[string]note
	order []string // ids in first-put order
	ops   []string

	putErr error
	// delErrOnce fails the next Delete call only, simulating an
	// interruption mid-reconciliation.
	delErrOnce error
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]note{}}
}

func (s *memStore) Get(_ context.Context, id string) (*note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *memStore) GetAllByParent(_ context.Context, parentID string) ([]*note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*note
	for _, id := range s.order {
		rec, ok := s.recs[id]
		if !ok || rec.DocID != parentID {
			continue
		}
		cp := rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) Put(_ context.Context, rec *note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if _, ok := s.recs[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.recs[rec.ID] = *rec
	s.ops = append(s.ops, "put:"+rec.ID)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErrOnce != nil {
		err := s.delErrOnce
		s.delErrOnce = nil
		return err
	}
	delete(s.recs, id)
	s.ops = append(s.ops, "delete:"+id)
	return nil
}

func (s *memStore) SetSyncFlag(_ context.Context, id string, synced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	if synced {
		rec.State = StateSynced
	} else {
		rec.State = StateUnsynced
	}
	s.recs[id] = rec
	s.ops = append(s.ops, "flag:"+id)
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func (s *memStore) opLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// memQueue is an in-memory JobQueue honoring the state machine and FIFO
// ordering contracts.
type memQueue struct {
	mu   sync.Mutex
	jobs []Job
	seq  int
}

func (q *memQueue) find(jobID string) *Job {
	for i := range q.jobs {
		if q.jobs[i].ID == jobID {
			return &q.jobs[i]
		}
	}
	return nil
}

func matchesType(job *Job, jobTypes []string) bool {
	if len(jobTypes) == 0 {
		return true
	}
	for _, t := range jobTypes {
		if job.Type == t {
			return true
		}
	}
	return false
}

func (q *memQueue) Enqueue(_ context.Context, jobType string, payload Payload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := fmt.Sprintf("job-%d", q.seq)
	q.jobs = append(q.jobs, Job{
		ID:        id,
		Type:      jobType,
		Payload:   payload,
		Status:    JobPending,
		CreatedAt: time.Now(),
	})
	return id, nil
}

func (q *memQueue) PendingJobs(_ context.Context, jobTypes ...string) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for i := range q.jobs {
		if q.jobs[i].Status == JobPending && matchesType(&q.jobs[i], jobTypes) {
			out = append(out, q.jobs[i])
		}
	}
	return out, nil
}

func (q *memQueue) MarkProcessing(_ context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.find(jobID)
	if job == nil {
		return false, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != JobPending {
		return false, nil
	}
	job.Status = JobProcessing
	return true, nil
}

func (q *memQueue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.find(jobID)
	if job == nil || job.Status != JobProcessing {
		return fmt.Errorf("job %s is not processing", jobID)
	}
	job.Status = JobCompleted
	return nil
}

func (q *memQueue) Fail(_ context.Context, jobID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.find(jobID)
	if job == nil || (job.Status != JobPending && job.Status != JobProcessing) {
		return fmt.Errorf("job %s is not active", jobID)
	}
	job.Status = JobFailed
	job.LastError = reason
	return nil
}

func (q *memQueue) RecordAttemptFailure(_ context.Context, jobID string, attemptErr error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.find(jobID)
	if job == nil || job.Status != JobProcessing {
		return 0, fmt.Errorf("job %s is not processing", jobID)
	}
	job.Attempts++
	job.LastError = attemptErr.Error()
	job.Status = JobPending
	return job.Attempts, nil
}

func (q *memQueue) History(_ context.Context, jobTypes ...string) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for i := range q.jobs {
		st := q.jobs[i].Status
		if (st == JobCompleted || st == JobFailed) && matchesType(&q.jobs[i], jobTypes) {
			out = append(out, q.jobs[i])
		}
	}
	return out, nil
}

// fakeRemote is an in-memory RemoteClient assigning server identities
// of the form srv-1, srv-2, ...
type fakeRemote struct {
	mu   sync.Mutex
	seq  int
	recs map[string]note

	createErr error
	updateErr error
	deleteErr error
	getErr    error
	listErr   error

	createCalls int
	updateCalls int
	deleteCalls []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{recs: map[string]note{}}
}

func (r *fakeRemote) Create(_ context.Context, rec *note) (*note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.seq++
	cp := *rec
	cp.ID = fmt.Sprintf("srv-%d", r.seq)
	r.recs[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *fakeRemote) Update(_ context.Context, rec *note) (*note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	cp := *rec
	r.recs[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *fakeRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, id)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.recs, id)
	return nil
}

func (r *fakeRemote) Get(_ context.Context, id string) (*note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.recs[id]
	if !ok {
		return nil, &RemoteError{Op: "GET /notes/" + id, StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	cp := rec
	return &cp, nil
}

func (r *fakeRemote) List(_ context.Context, parentID string) ([]*note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*note
	for _, rec := range r.recs {
		if rec.DocID != parentID {
			continue
		}
		cp := rec
		out = append(out, &cp)
	}
	return out, nil
}

type testEnv struct {
	coord  *Coordinator[*note]
	store  *memStore
	queue  *memQueue
	remote *fakeRemote
	oracle *Switch
	events <-chan Event
}

// newTestEnv wires a bookmark-less "note" coordinator with deterministic
// local ids loc-1, loc-2, ...
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	queue := &memQueue{}
	remote := newFakeRemote()
	oracle := NewSwitch(true)

	localSeq := 0
	coord, err := NewCoordinator(CoordinatorOptions[*note]{
		Kind:      "note",
		Store:     store,
		Remote:    remote,
		Oracle:    oracle,
		Queue:     queue,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewRecord: func() *note { return &note{} },
		NewID: func() string {
			localSeq++
			return fmt.Sprintf("loc-%d", localSeq)
		},
	})
	require.NoError(t, err)

	events, cancel := coord.Events().Subscribe()
	t.Cleanup(cancel)

	return &testEnv{coord: coord, store: store, queue: queue, remote: remote, oracle: oracle, events: events}
}

// drainEvents returns the events emitted so far without blocking.
func (e *testEnv) drainEvents() []Event {
	var out []Event
	for {
		select {
		case ev := <-e.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (e *testEnv) pending(t *testing.T) []Job {
	t.Helper()
	jobs, err := e.queue.PendingJobs(context.Background())
	require.NoError(t, err)
	return jobs
}
