// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"time"
)

// OpTiming describes one engine operation for performance telemetry.
type OpTiming struct {
	Kind     string // entity kind, e.g. "bookmark"
	Op       string // "create", "update", "delete", "replay", "list", "search"
	Duration time.Duration
	Error    bool
}

// OpTimingRecorder receives operation timings. It is an optional
// decorator with no effect on correctness; a nil recorder disables it.
type OpTimingRecorder interface {
	ObserveOp(ctx context.Context, timing OpTiming)
}

// OpTimingRecorderFunc adapts a function to the OpTimingRecorder interface.
type OpTimingRecorderFunc func(ctx context.Context, timing OpTiming)

func (f OpTimingRecorderFunc) ObserveOp(ctx context.Context, timing OpTiming) {
	f(ctx, timing)
}
