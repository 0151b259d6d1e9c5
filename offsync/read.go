// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Get returns the local record immediately. When online it additionally
// fetches the server copy and, unless a local unsynced edit is pending,
// stores it as the new local truth. Remote failures never surface as
// long as a local answer exists.
func (c *Coordinator[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	local, lerr := c.store.Get(ctx, id)
	haveLocal := lerr == nil
	if lerr != nil && !errors.Is(lerr, ErrNotFound) {
		return zero, &StorageFault{Op: "get " + c.kind, Err: lerr}
	}

	if !c.oracle.IsOnline(ctx) {
		if !haveLocal {
			return zero, lerr
		}
		return local, nil
	}

	remote, rerr := c.remote.Get(ctx, id)
	if rerr != nil {
		if !haveLocal {
			return zero, lerr
		}
		c.logger.Debug("remote get failed, serving local data",
			"kind", c.kind, "id", id, "error", rerr)
		return local, nil
	}
	if haveLocal && local.SyncState() == StateUnsynced {
		return local, nil
	}
	if !haveLocal {
		// The server may still return a record whose delete job has not
		// replayed yet; the caller already observed that deletion.
		doomed, derr := c.pendingDeleteIDs(ctx)
		if derr != nil {
			return zero, derr
		}
		if _, ok := doomed[id]; ok {
			return zero, fmt.Errorf("get %s %q: %w", c.kind, id, ErrNotFound)
		}
	}
	remote.SetSyncState(StateSynced)
	if perr := c.store.Put(ctx, remote); perr != nil {
		return zero, &StorageFault{Op: "get " + c.kind, Err: perr}
	}
	return remote, nil
}

// List returns the records under parentID. When online the server's
// result set overwrites the local cache before the refreshed rows are
// returned; rows still unsynced are preserved, since their jobs are
// pending and the server cannot know them yet. On remote failure the
// already-loaded local rows are returned silently.
func (c *Coordinator[T]) List(ctx context.Context, parentID string) ([]T, error) {
	local, lerr := c.store.GetAllByParent(ctx, parentID)
	if lerr != nil {
		return nil, &StorageFault{Op: "list " + c.kind, Err: lerr}
	}
	if !c.oracle.IsOnline(ctx) {
		return c.capList(local), nil
	}

	server, rerr := c.remote.List(ctx, parentID)
	if rerr != nil {
		c.logger.Debug("remote list failed, serving local data",
			"kind", c.kind, "parent", parentID, "error", rerr)
		return c.capList(local), nil
	}
	if err := c.refreshCache(ctx, local, server); err != nil {
		return nil, err
	}
	refreshed, lerr := c.store.GetAllByParent(ctx, parentID)
	if lerr != nil {
		return nil, &StorageFault{Op: "list " + c.kind, Err: lerr}
	}
	return c.capList(refreshed), nil
}

// Search returns the records under parentID matched by the match
// predicate. Local and remote results are merged keyed by identity with
// server data winning on conflict, ordered by descending creation time.
func (c *Coordinator[T]) Search(ctx context.Context, parentID string, match func(T) bool) ([]T, error) {
	local, lerr := c.store.GetAllByParent(ctx, parentID)
	if lerr != nil {
		return nil, &StorageFault{Op: "search " + c.kind, Err: lerr}
	}

	merged := make(map[string]T, len(local))
	for _, rec := range local {
		if match == nil || match(rec) {
			merged[rec.RecordID()] = rec
		}
	}

	if c.oracle.IsOnline(ctx) {
		server, rerr := c.remote.List(ctx, parentID)
		if rerr != nil {
			c.logger.Debug("remote search failed, serving local data",
				"kind", c.kind, "parent", parentID, "error", rerr)
		} else {
			doomed, derr := c.pendingDeleteIDs(ctx)
			if derr != nil {
				return nil, derr
			}
			for _, rec := range server {
				if _, gone := doomed[rec.RecordID()]; gone {
					continue
				}
				if match == nil || match(rec) {
					rec.SetSyncState(StateSynced)
					merged[rec.RecordID()] = rec // server wins on conflict
				}
			}
		}
	}

	results := make([]T, 0, len(merged))
	for _, rec := range merged {
		results = append(results, rec)
	}
	sort.Slice(results, func(i, j int) bool {
		ti, tj := results[i].CreatedTime(), results[j].CreatedTime()
		if ti.Equal(tj) {
			return results[i].RecordID() < results[j].RecordID()
		}
		return ti.After(tj)
	})
	return c.capList(results), nil
}

// pendingDeleteIDs returns the record ids with a delete job still
// awaiting replay for this kind.
func (c *Coordinator[T]) pendingDeleteIDs(ctx context.Context) (map[string]struct{}, error) {
	jobs, err := c.queue.PendingJobs(ctx, c.jobDelete)
	if err != nil {
		return nil, &StorageFault{Op: "read " + c.kind, Err: err}
	}
	ids := make(map[string]struct{}, len(jobs))
	for i := range jobs {
		if id, ok := jobs[i].Payload.String(PayloadKeyRecordID); ok && id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// capList bounds result sets to the configured list limit.
func (c *Coordinator[T]) capList(recs []T) []T {
	if c.config.ListLimit > 0 && len(recs) > c.config.ListLimit {
		return recs[:c.config.ListLimit]
	}
	return recs
}

// refreshCache materializes the server result set locally: server rows
// are upserted as synced, and synced local rows the server no longer
// returns are removed. Unsynced rows are left untouched, as are server
// rows whose delete job is still pending replay.
func (c *Coordinator[T]) refreshCache(ctx context.Context, local, server []T) error {
	doomed, derr := c.pendingDeleteIDs(ctx)
	if derr != nil {
		return derr
	}
	serverIDs := make(map[string]struct{}, len(server))
	for _, rec := range server {
		if _, gone := doomed[rec.RecordID()]; gone {
			continue
		}
		serverIDs[rec.RecordID()] = struct{}{}
		rec.SetSyncState(StateSynced)
		if err := c.store.Put(ctx, rec); err != nil {
			return &StorageFault{Op: "refresh " + c.kind, Err: err}
		}
	}
	for _, rec := range local {
		if _, ok := serverIDs[rec.RecordID()]; ok {
			continue
		}
		if rec.SyncState() == StateUnsynced {
			continue
		}
		if err := c.store.Delete(ctx, rec.RecordID()); err != nil {
			return &StorageFault{Op: "refresh " + c.kind, Err: err}
		}
	}
	return nil
}
