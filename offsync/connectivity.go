// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"sync/atomic"
)

// ConnectivityOracle reports current online/offline state on demand.
// Implementations must be non-blocking.
type ConnectivityOracle interface {
	IsOnline(ctx context.Context) bool
}

// OnlineFunc adapts a function to the ConnectivityOracle interface.
type OnlineFunc func(ctx context.Context) bool

func (f OnlineFunc) IsOnline(ctx context.Context) bool { return f(ctx) }

// Switch is an atomic connectivity flag for platforms that surface
// reachability as callbacks rather than queries.
type Switch struct {
	offline int32
}

// NewSwitch returns a Switch in the given initial state.
func NewSwitch(online bool) *Switch {
	s := &Switch{}
	s.SetOnline(online)
	return s
}

// SetOnline flips the switch.
func (s *Switch) SetOnline(online bool) {
	if online {
		atomic.StoreInt32(&s.offline, 0)
	} else {
		atomic.StoreInt32(&s.offline, 1)
	}
}

// IsOnline implements ConnectivityOracle.
func (s *Switch) IsOnline(context.Context) bool {
	return atomic.LoadInt32(&s.offline) == 0
}
