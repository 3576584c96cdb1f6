package utils

import (
	"runtime"
	"sync/atomic"
)

// yieldFn is called while waiting on a held SpinLock
var yieldFn = runtime.Gosched

// SpinLock is a lock where each caller trying to acquire it busy-waits until the lock becomes
// available. It is not reentrant: acquiring a lock that the caller already holds deadlocks.
// There is no fairness between waiters.
type SpinLock struct {
	state atomic.Uint32
}

func (l *SpinLock) Lock() {
	for !l.state.CompareAndSwap(0, 1) {
		for l.state.Load() != 0 {
			yieldFn()
		}
	}
}

// TryLock attempts to acquire the lock and returns true if the lock could be acquired
func (l *SpinLock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Unlock releases a held lock. Calling Unlock while the lock is free has no effect.
func (l *SpinLock) Unlock() {
	l.state.Store(0)
}

// OptionalSpinLock is a SpinLock that can be switched off for callers that synchronize
// externally
type OptionalSpinLock struct {
	Spin    SpinLock
	UseLock bool
}

func (m *OptionalSpinLock) Lock() {
	if m.UseLock {
		m.Spin.Lock()
	}
}

func (m *OptionalSpinLock) TryLock() bool {
	if m.UseLock {
		return m.Spin.TryLock()
	}

	return true
}

func (m *OptionalSpinLock) Unlock() {
	if m.UseLock {
		m.Spin.Unlock()
	}
}
