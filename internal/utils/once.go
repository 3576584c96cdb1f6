package utils

import (
	"sync/atomic"

	"github.com/ddos-os/kmem/memutils"
)

// WriteOnce holds a value that is set exactly once, during initialization, and read freely
// afterward
type WriteOnce[T any] struct {
	value atomic.Pointer[T]
}

// Set stores value. It returns memutils.ErrAlreadyArmed, and leaves the held value alone, if a
// value was already stored.
func (w *WriteOnce[T]) Set(value T) error {
	if !w.value.CompareAndSwap(nil, &value) {
		return memutils.ErrAlreadyArmed
	}
	return nil
}

// Get returns the stored value. ok is false if Set has not been called.
func (w *WriteOnce[T]) Get() (value T, ok bool) {
	ptr := w.value.Load()
	if ptr == nil {
		return value, false
	}
	return *ptr, true
}

// MustGet returns the stored value and panics with memutils.ErrNotArmed if Set has not been called
func (w *WriteOnce[T]) MustGet() T {
	ptr := w.value.Load()
	if ptr == nil {
		panic(memutils.ErrNotArmed)
	}
	return *ptr
}

// IsSet returns true once a value has been stored
func (w *WriteOnce[T]) IsSet() bool {
	return w.value.Load() != nil
}
