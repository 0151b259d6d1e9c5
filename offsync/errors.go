// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced entity is absent from the local
// store. It surfaces to the caller and is never retried.
var ErrNotFound = errors.New("record not found")

// ErrMaxAttempts reports that a queued job exhausted its retry budget.
// It is recorded on the failed job, never returned to the original caller.
var ErrMaxAttempts = errors.New("job exhausted its retry budget")

// RemoteError is any transport or server problem talking to the remote
// service. Remote errors are always considered retryable: once the
// local-first write has succeeded they never propagate past the
// Coordinator boundary and are converted into queued jobs instead.
type RemoteError struct {
	Op         string // e.g. "POST /bookmarks"
	StatusCode int    // zero when the request never reached the server
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// StorageFault is a local persistence failure. Durability itself is
// compromised, so it is fatal: surfaced immediately, nothing is queued.
type StorageFault struct {
	Op  string
	Err error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error { return e.Err }

// IsStorageFault reports whether err is (or wraps) a StorageFault.
func IsStorageFault(err error) bool {
	var sf *StorageFault
	return errors.As(err, &sf)
}
