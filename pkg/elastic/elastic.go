// Package elastic implements the sleep/wake subsystem that parks idle
// workers and wakes them when new work is pushed, per spec.md §4.6.
//
// Two variants are available, selected at Runtime construction time by the
// DISABLE_ELASTIC / ELASTIC_SPINSLEEP flags described in spec.md §6:
// Minimal (idle workers spin forever) and Sleeping (binary semaphore per
// worker, optionally with a bounded busy-spin before blocking).
package elastic

import (
	"context"
	"hash/maphash"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Policy is consulted by the worker loop (pkg/worker) after a steal round
// that found nothing, and by the fiber graph's release path whenever a
// fiber is pushed to a worker's deque.
type Policy interface {
	// Park blocks the calling worker until woken by OnPush or WakeAll, or
	// returns immediately for the Minimal policy (the caller is expected
	// to keep spinning). recheck is called after the worker has published
	// itself as asleep (so a concurrent OnPush can see it) but before any
	// actual blocking: if recheck reports that work appeared in that
	// window, Park returns at once without sleeping, closing the
	// mark-asleep/observe-empty race. recheck may be nil.
	Park(workerID int, recheck func() bool)
	// OnPush is called after a fiber is pushed to workerID's deque; it may
	// wake one parked worker.
	OnPush(workerID int)
	// WakeAll wakes every currently (or future) parked worker and makes
	// Park a no-op from then on. Called once the terminal fiber has
	// finished, so no worker is ever left parked with nothing left to
	// ever wake it again.
	WakeAll()
	// NumSleepers returns the approximate current count of parked workers.
	NumSleepers() int64
	// NumSleeps returns the lifetime count of successful parks (spec.md §6
	// nb_sleeps counter).
	NumSleeps() uint64
}

// Minimal never parks; idle workers must spin on their own. Useful for
// benchmarking and workloads where wake latency dominates (spec.md §4.6).
type Minimal struct{}

// Park is a no-op; callers spin outside.
func (Minimal) Park(int, func() bool) {}

// OnPush is a no-op: there is nothing asleep to wake.
func (Minimal) OnPush(int) {}

// WakeAll is a no-op: nothing ever parks under Minimal.
func (Minimal) WakeAll() {}

// NumSleepers is always zero under the Minimal policy.
func (Minimal) NumSleepers() int64 { return 0 }

// NumSleeps is always zero under the Minimal policy.
func (Minimal) NumSleeps() uint64 { return 0 }

// binarySem is a single-permit wake/wait gate built on
// golang.org/x/sync/semaphore.Weighted(1). The permit is pre-consumed at
// construction so the first Park call blocks; each OnPush-driven Release
// hands the permit to exactly one blocked Park, which re-acquires it
// (consuming it again) before returning — giving the "wake exactly one
// sleeper" semantics spec.md §4.6 requires without hand-rolling a
// condition variable.
type binarySem struct {
	w *semaphore.Weighted
}

func newBinarySem() *binarySem {
	s := &binarySem{w: semaphore.NewWeighted(1)}
	_ = s.w.Acquire(context.Background(), 1) // pre-consume: starts "empty"
	return s
}

func (s *binarySem) wait(ctx context.Context) { _ = s.w.Acquire(ctx, 1) }
func (s *binarySem) tryWait() bool            { return s.w.TryAcquire(1) }
func (s *binarySem) post()                    { s.w.Release(1) }

// Sleeping is the full elastic policy: each worker has its own binarySem.
// A worker whose steal round fails increments the sleeper count, marks
// itself asleep, and waits. A worker that pushes a fiber checks the
// sleeper count and, if positive, wakes one sleeper chosen by a hash of the
// pusher's worker id — spec.md leaves the exact hash unspecified ("any
// uniform policy suffices", §9), so a seeded maphash is used purely to
// spread wakeups across workers deterministically within a run.
type Sleeping struct {
	sems         []*binarySem
	asleep       []atomic.Bool
	sleeperCount atomic.Int64
	nbSleeps     atomic.Uint64
	shutdown     atomic.Bool

	spinBeforeSleep bool
	spinIters       int
	seed            maphash.Seed
}

// NewSleeping creates a Sleeping policy for numWorkers workers. When
// spinBeforeSleep is true (ELASTIC_SPINSLEEP), a worker about to park first
// busy-spins for spinIters rounds of runtime.Gosched — the original's
// "spinning-semaphore variant ... bounded spinning before descending into a
// futex-style wait" reexpressed with Go-safe primitives instead of a raw
// futex syscall.
func NewSleeping(numWorkers int, spinBeforeSleep bool, spinIters int) *Sleeping {
	s := &Sleeping{
		sems:            make([]*binarySem, numWorkers),
		asleep:          make([]atomic.Bool, numWorkers),
		spinBeforeSleep: spinBeforeSleep,
		spinIters:       spinIters,
		seed:            maphash.MakeSeed(),
	}
	for i := range s.sems {
		s.sems[i] = newBinarySem()
	}
	return s
}

// Park blocks workerID until OnPush or WakeAll wakes it.
//
// The worker is marked asleep, and only then is recheck consulted: marking
// asleep first is what makes the worker visible to a racing OnPush
// (spec.md §4.6's "fiber-pushed signal cannot be lost"), but a fiber can
// just as easily have been pushed in the window between the caller's own
// last look at its work and this call — recheck re-scans for that work
// while the worker is already visible as a sleeper, so that window cannot
// cause a missed wakeup either. If recheck finds work, Park returns
// immediately without ever touching the semaphore.
func (s *Sleeping) Park(workerID int, recheck func() bool) {
	if s.shutdown.Load() {
		return
	}

	s.asleep[workerID].Store(true)
	s.sleeperCount.Add(1)

	if (recheck != nil && recheck()) || s.shutdown.Load() {
		s.sleeperCount.Add(-1)
		s.asleep[workerID].Store(false)
		return
	}

	if s.spinBeforeSleep {
		for i := 0; i < s.spinIters; i++ {
			if s.sems[workerID].tryWait() {
				s.sleeperCount.Add(-1)
				s.asleep[workerID].Store(false)
				return
			}
			if s.shutdown.Load() {
				s.sleeperCount.Add(-1)
				s.asleep[workerID].Store(false)
				return
			}
			runtime.Gosched()
		}
	}

	s.nbSleeps.Add(1)
	s.sems[workerID].wait(context.Background())
	s.sleeperCount.Add(-1)
	s.asleep[workerID].Store(false)
}

// OnPush wakes one sleeper, chosen by hashing pusherID, if any are parked.
// The publication of the pushed fiber's bottom index (pkg/deque PushBottom)
// happens-before this call in every caller in this module, and the
// sleeper's asleep-flag store happens-before its wait — so the "fiber
// pushed" signal can never be lost (spec.md §4.6).
func (s *Sleeping) OnPush(pusherID int) {
	if s.sleeperCount.Load() <= 0 {
		return
	}
	n := len(s.sems)
	var h maphash.Hash
	h.SetSeed(s.seed)
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(pusherID >> (8 * i))
	}
	h.Write(b[:])
	start := int(h.Sum64() % uint64(n))
	for i := 0; i < n; i++ {
		victim := (start + i) % n
		if s.asleep[victim].Load() {
			s.sems[victim].post()
			return
		}
	}
}

// WakeAll posts every worker's semaphore once and marks the policy shut
// down. A worker currently blocked in wait() is released immediately; a
// worker that has not yet called Park, or is about to call it again
// racing with shutdown, finds its semaphore already has a banked permit
// (or sees the shutdown flag directly) and returns without blocking. Park
// is a permanent no-op after this call.
func (s *Sleeping) WakeAll() {
	s.shutdown.Store(true)
	for _, sem := range s.sems {
		sem.post()
	}
}

// NumSleepers returns the approximate current count of parked workers.
func (s *Sleeping) NumSleepers() int64 { return s.sleeperCount.Load() }

// NumSleeps returns the lifetime count of successful parks.
func (s *Sleeping) NumSleeps() uint64 { return s.nbSleeps.Load() }
