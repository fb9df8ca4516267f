// Package fiber implements the fiber graph: schedulable units of work with
// an incoming-edge (predecessor) counter and outgoing successor edges.
// A fiber is released when its predecessor count reaches zero; release is
// the only path by which a fiber becomes eligible for execution.
package fiber

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Status is the outcome of one call to a fiber's body.
type Status int

const (
	// StatusPause means the fiber has not finished: New fibers start in it,
	// and a body returning it is not notified. No body in this module
	// returns it; fork2 task bodies always return StatusFinish.
	StatusPause Status = iota
	// StatusFinish means the fiber's body is complete; successors fire.
	StatusFinish
)

func (s Status) String() string {
	if s == StatusFinish {
		return "finish"
	}
	return "pause"
}

// Counter is a generic atomic integer, used for the predecessor count.
// Parameterising over the integer type is overkill for a single field but
// keeps the edge-count arithmetic (which is always signed, small, and
// hot-path) distinct from byte-counting or other unsigned atomics elsewhere
// in the runtime.
type Counter[T constraints.Signed] struct {
	v atomic.Int64
}

// Add adds delta and returns the new value.
func (c *Counter[T]) Add(delta T) T { return T(c.v.Add(int64(delta))) }

// Load returns the current value.
func (c *Counter[T]) Load() T { return T(c.v.Load()) }

// Runnable is a fiber's body. Run receives an opaque host value identifying
// whatever is currently executing the fiber (a *worker.Worker wrapped in a
// worker.Host, in this runtime) so a body that itself schedules new work
// — a fork2 task — can address the right deque, rather than closing over
// whichever worker happened to exist when the fiber was constructed. A
// fiber can be released on one worker and actually run by the thief that
// stole it, so "current worker" must be resolved at Run time, not earlier.
// Most bodies ignore host entirely.
type Runnable interface {
	Run(host any) Status
}

// RunnableFunc adapts a plain func() to Runnable; it always finishes and
// ignores host.
type RunnableFunc func()

// Run implements Runnable.
func (f RunnableFunc) Run(host any) Status {
	f()
	return StatusFinish
}

// Fiber is the runtime's scheduling node: a predecessor count, a list of
// successors decremented on finish, a status, and a body to run.
//
// A fiber must have all of its incoming edges (AddEdge calls) installed
// before it or any of its predecessors are released; edges are one-shot —
// once Notify has fired, Successors must not be read or written again.
type Fiber struct {
	pred       Counter[int32]
	successors []*Fiber
	status     Status
	body       Runnable
	onFinish   func()

	// ranInline is set when this fiber's body executed as a nested Go call
	// on another fiber's goroutine (the fork2 fast path) rather than being
	// picked up independently by a worker loop. It is the direct analogue
	// of the original runtime's "stack is not mine to free" sentinel: it
	// marks that no standalone execution context is waiting on this fiber,
	// only bookkeeping, since Go's GC — not an explicit free() — reclaims
	// the fiber once it is unreferenced.
	ranInline bool

	notified bool

	// silent marks a fiber that exists purely to count predecessor edges
	// (the fork2 join point, see forkjoin.Context.Fork2) and must never be
	// pushed to a deque or executed even once it becomes ready. Schedulers
	// must check Silent before enqueuing a freshly-released fiber.
	silent bool
}

// New creates a fiber with the given body and zero predecessors.
func New(body Runnable) *Fiber {
	return &Fiber{body: body, status: StatusPause}
}

// NewFunc is a convenience constructor for a plain func() body.
func NewFunc(f func()) *Fiber {
	return New(RunnableFunc(f))
}

// OnFinish installs a completion hook, invoked exactly once when the fiber
// finishes, before its successors are released. Must be called before
// the fiber is released.
func (f *Fiber) OnFinish(hook func()) { f.onFinish = hook }

// AddEdge records that succ depends on pred: succ's predecessor count is
// incremented, and succ is added to pred's successor list. Must be called
// before either pred or succ is released.
func AddEdge(pred, succ *Fiber) {
	succ.pred.Add(1)
	pred.successors = append(pred.successors, succ)
}

// Ready reports whether the fiber has had every predecessor edge satisfied
// and is eligible to run.
func (f *Fiber) Ready() bool { return f.pred.Load() <= 0 }

// MarkSilent marks the fiber as a pure join counter: it must never be
// pushed to a deque or executed, even once Release reports it ready.
// Callers that poll Ready directly (forkjoin.Context.Fork2) still observe
// readiness correctly; only the generic scheduler's push-on-release path
// is suppressed.
func (f *Fiber) MarkSilent() { f.silent = true }

// Silent reports whether MarkSilent was called.
func (f *Fiber) Silent() bool { return f.silent }

// Release decrements the fiber's predecessor count. The caller must push f
// onto a deque iff Release returns true.
func Release(f *Fiber) bool {
	return f.pred.Add(-1) <= 0
}

// Exec runs the fiber's body once against host and returns its status.
func (f *Fiber) Exec(host any) Status {
	f.status = f.body.Run(host)
	return f.status
}

// Status returns the status recorded by the most recent Exec.
func (f *Fiber) Status() Status { return f.status }

// SetInline marks the fiber as having executed via a nested call rather
// than an independent worker pickup.
func (f *Fiber) SetInline() { f.ranInline = true }

// RanInline reports whether SetInline was called.
func (f *Fiber) RanInline() bool { return f.ranInline }

// Notify fires f's completion: each successor is released, and any caller
// that observes Release returning true is responsible for scheduling that
// successor. Notify must be called exactly once per fiber, after Exec
// returns StatusFinish. Successors must not be inspected afterward.
func Notify(f *Fiber, schedule func(*Fiber)) {
	if f.notified {
		panic("fiber: Notify called more than once")
	}
	f.notified = true
	if f.onFinish != nil {
		f.onFinish()
	}
	succs := f.successors
	f.successors = nil
	for _, s := range succs {
		if Release(s) {
			schedule(s)
		}
	}
}
