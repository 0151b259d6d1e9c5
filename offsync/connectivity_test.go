// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwitch(t *testing.T) {
	ctx := context.Background()

	s := NewSwitch(true)
	require.True(t, s.IsOnline(ctx))
	s.SetOnline(false)
	require.False(t, s.IsOnline(ctx))
	s.SetOnline(true)
	require.True(t, s.IsOnline(ctx))

	require.False(t, NewSwitch(false).IsOnline(ctx))
}

func TestOpTimingRecorder(t *testing.T) {
	env := newTestEnv(t)

	var timings []OpTiming
	env.coord.metrics = OpTimingRecorderFunc(func(_ context.Context, timing OpTiming) {
		timings = append(timings, timing)
	})

	_, err := env.coord.Create(context.Background(), &note{DocID: "doc-1", Title: "timed"})
	require.NoError(t, err)

	require.Len(t, timings, 1)
	require.Equal(t, "note", timings[0].Kind)
	require.Equal(t, OpCreate, timings[0].Op)
	require.False(t, timings[0].Error)
}
