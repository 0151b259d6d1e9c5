// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcilePutsBeforeDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.coord.Create(ctx, &note{DocID: "doc-1", Title: "ordered"})
	require.NoError(t, err)

	ops := env.store.opLog()
	require.Equal(t, []string{"put:loc-1", "put:srv-1", "delete:loc-1", "flag:srv-1"}, ops)
}

func TestReconcileInterruptionNeverLosesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Fail the step between writing the server record and removing the
	// local one. The entity must survive under at least one identity.
	env.store.delErrOnce = errors.New("interrupted")
	_, err := env.coord.Create(ctx, &note{DocID: "doc-1", Title: "durable"})
	require.Error(t, err)
	require.True(t, IsStorageFault(err))

	require.Equal(t, 2, env.store.len(), "interruption leaves a duplicate, never zero records")
	_, err = env.store.Get(ctx, "srv-1")
	require.NoError(t, err)
	_, err = env.store.Get(ctx, "loc-1")
	require.NoError(t, err)
}

func TestReconcileSameIdentityIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &note{ID: "srv-7", DocID: "doc-1", Title: "same id"}
	out, err := env.coord.reconcile(ctx, "srv-7", rec)
	require.NoError(t, err)
	require.Equal(t, "srv-7", out.ID)
	require.Equal(t, StateSynced, out.State)
	require.Equal(t, 1, env.store.len())

	// Re-applying with the same server identity changes nothing.
	out, err = env.coord.reconcile(ctx, "srv-7", rec)
	require.NoError(t, err)
	require.Equal(t, "srv-7", out.ID)
	require.Equal(t, 1, env.store.len())
	require.NotContains(t, env.store.opLog(), "delete:srv-7")
}
