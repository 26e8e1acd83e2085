package cache

import "sync/atomic"

// Snapshot is a lock-free, read-optimized container
// holding any immutable structure.
type Snapshot[T any] struct{ v atomic.Pointer[T] }

// Load returns the stored value, and false if nothing was stored yet.
func (s *Snapshot[T]) Load() (T, bool) {
	p := s.v.Load()
	if p == nil {
		var z T
		return z, false
	}
	return *p, true
}

// Store atomically swaps in the new value.
func (s *Snapshot[T]) Store(v T) {
	s.v.Store(&v)
}

// Update applies fn to the current value and stores the result. Concurrent
// updates are serialised by compare-and-swap.
func (s *Snapshot[T]) Update(fn func(T) T) {
	for {
		old := s.v.Load()
		var cur T
		if old != nil {
			cur = *old
		}
		next := fn(cur)
		if s.v.CompareAndSwap(old, &next) {
			return
		}
	}
}
