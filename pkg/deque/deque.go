// Package deque implements a Chase-Lev work-stealing deque: a single owner
// pushes and pops at the bottom (LIFO), and any number of thieves steal from
// the top (FIFO), all without locks.
//
// This generalizes the teacher's WSDeque (github.com/ha1tch/ual,
// worksteal.go) from a fixed-capacity byte-slice buffer with a mutex-guarded
// Steal to the real Chase-Lev protocol spec.md §4.3 calls for: Steal never
// blocks, the owner only ever contends with thieves via a single top CAS,
// and the backing array grows by doubling and is published rather than
// mutated in place.
package deque

import (
	"sync/atomic"
)

// StealResult is the three-way outcome of a Steal call.
type StealResult int

const (
	// StealEmpty means the deque had nothing to steal.
	StealEmpty StealResult = iota
	// StealAbort means a concurrent owner pop or thief steal won the race;
	// this is a benign signal to retry, not an error (spec.md §4.3, §7).
	StealAbort
	// StealOk means the steal succeeded.
	StealOk
)

type circularArray[T any] struct {
	buf []T
}

func newCircularArray[T any](size int64) *circularArray[T] {
	return &circularArray[T]{buf: make([]T, size)}
}

func (a *circularArray[T]) size() int64 { return int64(len(a.buf)) }

func (a *circularArray[T]) get(i int64) T {
	return a.buf[i%a.size()]
}

func (a *circularArray[T]) put(i int64, v T) {
	a.buf[i%a.size()] = v
}

// grow returns a new array of double the size with the logical range
// [bottom, top) copied across, indexed identically. The old array is never
// mutated and remains reachable (and thus readable) through any in-flight
// thief that captured a pointer to it before the grow — Go's garbage
// collector gives us the "retire, don't free" requirement of spec.md §4.3
// for free, without an explicit grace-period scheme.
func (a *circularArray[T]) grow(bottom, top int64) *circularArray[T] {
	next := newCircularArray[T](a.size() * 2)
	for i := top; i < bottom; i++ {
		next.put(i, a.get(i))
	}
	return next
}

// Deque is a Chase-Lev work-stealing deque of T, typically *fiber.Fiber.
type Deque[T any] struct {
	top    atomic.Int64
	bottom atomic.Int64
	array  atomic.Pointer[circularArray[T]]
}

// New creates a deque with the given initial capacity (must be a power of
// two; callers needing a non-power-of-two size should round up).
func New[T any](initialCapacity int64) *Deque[T] {
	d := &Deque[T]{}
	d.array.Store(newCircularArray[T](initialCapacity))
	return d
}

// PushBottom adds v to the bottom of the deque. Owner-only.
func (d *Deque[T]) PushBottom(v T) {
	b := d.bottom.Load()
	t := d.top.Load()
	a := d.array.Load()
	if b-t >= a.size()-1 {
		a = a.grow(b, t)
		d.array.Store(a)
	}
	a.put(b, v)
	// Release-ordered: the slot write must be visible to any thief that
	// observes the new bottom.
	d.bottom.Store(b + 1)
}

// PopBottom removes and returns the bottom element. Owner-only. Races a
// concurrent Steal only when exactly one element remains, resolved by a CAS
// on top with the owner conceding to the thief on a tie (spec.md §4.3).
func (d *Deque[T]) PopBottom() (v T, ok bool) {
	a := d.array.Load()
	b := d.bottom.Load() - 1
	d.bottom.Store(b)
	t := d.top.Load()

	if t > b {
		// Already empty; restore bottom.
		d.bottom.Store(t)
		var zero T
		return zero, false
	}

	v = a.get(b)
	if t == b {
		// Last element: race the thieves for it.
		if !d.top.CompareAndSwap(t, t+1) {
			// Lost the race.
			d.bottom.Store(t + 1)
			var zero T
			return zero, false
		}
		d.bottom.Store(t + 1)
	}
	return v, true
}

// StealTop attempts to remove the top element. Many thieves may call this
// concurrently; it never blocks. StealAbort indicates a benign conflict the
// caller should retry (or move on to another victim), not an error.
func (d *Deque[T]) StealTop() (v T, res StealResult) {
	t := d.top.Load()
	// Acquire top before bottom, with a fence between them so a
	// concurrently growing array is observed correctly: the owner's
	// PushBottom release-stores bottom only after publishing the new
	// array, so reading top-then-bottom-then-array here is safe.
	b := d.bottom.Load()
	if t >= b {
		var zero T
		return zero, StealEmpty
	}
	a := d.array.Load()
	v = a.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		var zero T
		return zero, StealAbort
	}
	return v, StealOk
}

// Len returns an approximate size; only exact when called by the owner with
// no concurrent stealers.
func (d *Deque[T]) Len() int64 {
	b := d.bottom.Load()
	t := d.top.Load()
	if b-t < 0 {
		return 0
	}
	return b - t
}
