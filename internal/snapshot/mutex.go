//go:build !kindelia_deadlock_debug

package snapshot

import "sync"

// mutex is the exclusive-access guard on the heap/state handle. The
// default build uses the standard library; build with
// -tags kindelia_deadlock_debug to swap in go-deadlock's instrumented
// mutex during development.
type mutex = sync.Mutex
