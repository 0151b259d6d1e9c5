// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docsync

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mobiletoly/go-offsync/offsqlite"
	"github.com/mobiletoly/go-offsync/offsync"
)

// Entity kinds handled by the service.
const (
	KindBookmark = "bookmark"
	KindComment  = "comment"
	KindLibrary  = "library"
)

// RemoteClients bundles the per-kind remote boundaries.
type RemoteClients struct {
	Bookmarks offsync.RemoteClient[*Bookmark]
	Comments  offsync.RemoteClient[*Comment]
	Libraries offsync.RemoteClient[*Library]
}

// ServiceOptions configures a Service. DB and Remotes are required.
type ServiceOptions struct {
	DB      *sql.DB
	Remotes RemoteClients
	Oracle  offsync.ConnectivityOracle
	Config  *offsync.Config
	Logger  *slog.Logger
	Metrics offsync.OpTimingRecorder
}

// Service owns one sync coordinator per entity kind over a shared local
// database and job queue.
type Service struct {
	Bookmarks *offsync.Coordinator[*Bookmark]
	Comments  *offsync.Coordinator[*Comment]
	Libraries *offsync.Coordinator[*Library]

	queue  *offsqlite.Queue
	config *offsync.Config
	logger *slog.Logger

	// Pause switch (atomic): lets callers suspend replay deterministically.
	replayPaused int32
}

// NewService builds the stores, queue and coordinators for all kinds.
func NewService(opts ServiceOptions) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = offsync.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	queue, err := offsqlite.NewQueue(opts.DB)
	if err != nil {
		return nil, err
	}

	s := &Service{queue: queue, config: cfg, logger: logger}

	s.Bookmarks, err = newKindCoordinator(opts, cfg, logger, queue, KindBookmark,
		opts.Remotes.Bookmarks, func() *Bookmark { return &Bookmark{} })
	if err != nil {
		return nil, err
	}
	s.Comments, err = newKindCoordinator(opts, cfg, logger, queue, KindComment,
		opts.Remotes.Comments, func() *Comment { return &Comment{} })
	if err != nil {
		return nil, err
	}
	s.Libraries, err = newKindCoordinator(opts, cfg, logger, queue, KindLibrary,
		opts.Remotes.Libraries, func() *Library { return &Library{} })
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newKindCoordinator[T offsync.Record](
	opts ServiceOptions,
	cfg *offsync.Config,
	logger *slog.Logger,
	queue *offsqlite.Queue,
	kind string,
	remote offsync.RemoteClient[T],
	newRecord func() T,
) (*offsync.Coordinator[T], error) {
	store, err := offsqlite.NewStore(opts.DB, kind, newRecord)
	if err != nil {
		return nil, err
	}
	return offsync.NewCoordinator(offsync.CoordinatorOptions[T]{
		Kind:      kind,
		Store:     store,
		Remote:    remote,
		Oracle:    opts.Oracle,
		Queue:     queue,
		Config:    cfg,
		Logger:    logger,
		Metrics:   opts.Metrics,
		NewRecord: newRecord,
	})
}

// ReplayPendingJobs drains every kind's pending jobs, each kind in FIFO
// order. A failing kind does not stop the others.
func (s *Service) ReplayPendingJobs(ctx context.Context) error {
	if atomic.LoadInt32(&s.replayPaused) == 1 {
		return nil
	}
	return errors.Join(
		s.Bookmarks.ReplayPendingJobs(ctx),
		s.Comments.ReplayPendingJobs(ctx),
		s.Libraries.ReplayPendingJobs(ctx),
	)
}

// NotifyOnline is the connectivity-regained hook: it triggers an
// immediate replay pass.
func (s *Service) NotifyOnline(ctx context.Context) error {
	return s.ReplayPendingJobs(ctx)
}

// PauseReplay suspends replay passes deterministically.
func (s *Service) PauseReplay() { atomic.StoreInt32(&s.replayPaused, 1) }

// ResumeReplay resumes replay passes.
func (s *Service) ResumeReplay() { atomic.StoreInt32(&s.replayPaused, 0) }

// JobHistory returns terminal (completed/failed) jobs across all kinds.
func (s *Service) JobHistory(ctx context.Context) ([]offsync.Job, error) {
	return s.queue.History(ctx)
}

// Run replays pending jobs on a schedule until ctx is cancelled. Failed
// passes back off exponentially between BackoffMin and BackoffMax; a
// successful pass resets the backoff and waits interval.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	backoff := s.config.BackoffMin
	for {
		if err := s.ReplayPendingJobs(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("replay pass failed", "error", err)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return
			}
			backoff *= 2
			if backoff > s.config.BackoffMax {
				backoff = s.config.BackoffMax
			}
			continue
		}
		backoff = s.config.BackoffMin
		if err := sleepWithContext(ctx, interval); err != nil {
			return
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
