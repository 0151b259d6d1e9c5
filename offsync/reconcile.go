// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import "context"

// reconcile replaces the locally identified record with the server's
// canonical one. The order is load-bearing: the new record is written
// before the old one is removed, so an interruption between the steps
// leaves at worst a harmless duplicate (recoverable by a later sync
// pass), never zero records. The reverse order could lose the entity
// entirely. Re-applying with the same server identity is idempotent.
func (c *Coordinator[T]) reconcile(ctx context.Context, localID string, server T) (T, error) {
	var zero T

	server.SetSyncState(StateSynced)
	if err := c.store.Put(ctx, server); err != nil {
		return zero, &StorageFault{Op: "reconcile " + c.kind, Err: err}
	}
	if server.RecordID() != localID {
		if err := c.store.Delete(ctx, localID); err != nil {
			return zero, &StorageFault{Op: "reconcile " + c.kind, Err: err}
		}
	}
	if err := c.store.SetSyncFlag(ctx, server.RecordID(), true); err != nil {
		return zero, &StorageFault{Op: "reconcile " + c.kind, Err: err}
	}
	return server, nil
}
