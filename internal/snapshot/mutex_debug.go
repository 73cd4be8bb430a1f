//go:build kindelia_deadlock_debug

package snapshot

import "github.com/sasha-s/go-deadlock"

// mutex with lock-order and hold-time instrumentation, for debug builds.
type mutex = deadlock.Mutex
