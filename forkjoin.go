// Package forkjoin is the runtime core of a parallel fork/join scheduler
// for shared-memory multicore machines: programs express parallelism by
// recursively forking two child tasks and implicitly joining when both
// complete, and the runtime distributes tasks across a fixed pool of
// worker threads using randomized work stealing.
//
// See SPEC_FULL.md for the full design; in short, this package wires
// together pkg/fiber (the dataflow graph), pkg/deque (the Chase-Lev
// work-stealing deque), pkg/worker (the per-worker loop), and pkg/elastic
// (the sleep/wake policy) behind the two public entry points, Launch and
// Context.Fork2.
package forkjoin

import (
	"runtime"

	"github.com/ha1tch/forkjoin/pkg/fiber"
	"github.com/ha1tch/forkjoin/pkg/worker"
)

// Task is the body of a fiber: a closure that receives the Context it is
// running under, so it can itself call Fork2. This is the Go-idiomatic
// replacement for the "current fiber" thread-local the original native
// implementation relies on (Design Notes §9: "avoid true thread-locals for
// testability") — the running worker is threaded through explicitly
// instead of being recovered from a global.
type Task func(ctx *Context)

// Context is handed to a running Task. It identifies which worker (and
// which pool) the task is executing on, which is all Fork2 needs.
type Context struct {
	w       *worker.Worker
	p       *worker.Pool
	elision bool
}

// taskRunnable adapts a Task to fiber.Runnable. It builds its Context from
// the host passed to Run, not from a Context captured at construction
// time: the worker that creates a task fiber and the worker that ends up
// executing it (after a successful steal) are frequently not the same
// one, and PushLocal is only safe to call from the deque's own owner.
type taskRunnable struct {
	task Task
}

func (t taskRunnable) Run(host any) fiber.Status {
	h := host.(worker.Host)
	t.task(&Context{w: h.W, p: h.P})
	return fiber.StatusFinish
}

func newTaskFiber(task Task) *fiber.Fiber {
	return fiber.New(taskRunnable{task: task})
}

// Fork2 runs f1 and f2 "in parallel" and returns only after both have
// finished (spec.md §6). Inside a running fiber, calling Fork2 is the only
// way new parallelism is introduced.
//
// With SEQUENTIAL_ELISION set, Fork2 simply calls f1 then f2 in order on
// the calling goroutine; the sequence of user-observable side effects then
// equals an in-order depth-first traversal of the fork tree, per spec.md
// §8's elision-equivalence law.
func (c *Context) Fork2(f1, f2 Task) {
	if c.elision {
		f1(c)
		f2(c)
		return
	}

	w, p := c.w, c.p
	assertf(w != nil && p != nil, "Fork2 called outside a running fiber")

	// The join point: a silent fiber whose only purpose is to count the
	// two incoming edges from f1Fiber/f2Fiber. It is never pushed to a
	// deque or executed (pkg/fiber.Fiber.Silent) — the direct-call fast
	// path below resolves it by direct polling, not by scheduling it as a
	// fresh task (Design Notes §9's "re-architecture" alternative to
	// stack-switching, realized without even needing a fresh task for the
	// continuation: the parent's own goroutine, blocked in the helping
	// loop below, *is* the continuation).
	parent := fiber.New(fiber.RunnableFunc(func() {}))
	parent.MarkSilent()

	f1Fiber := newTaskFiber(f1)
	f2Fiber := newTaskFiber(f2)
	fiber.AddEdge(f2Fiber, parent)
	fiber.AddEdge(f1Fiber, parent)

	// Unconditional, before either child is released, matching spec.md
	// §4.5's "increment of the fiber counter is unconditional."
	p.Stats.Worker(w.ID).NbFibers.Add(2)

	if fiber.Release(f2Fiber) {
		w.PushLocal(p, f2Fiber)
	}
	if fiber.Release(f1Fiber) {
		w.PushLocal(p, f1Fiber)
	}
	// f1 was pushed last, so it sits on top of the owner's own deque: a
	// local pop serves f1 first, while a thief stealing from the other end
	// takes f2 first (spec.md §4.5 step 1).

	popped, ok := w.PopLocal()
	assertf(ok && popped == f1Fiber, "fork2: expected to pop f1 immediately after pushing it")
	f1Fiber.SetInline()
	p.Exec(w, f1Fiber)

	// f1 ran to completion inline, on this very call stack — the "child
	// runs on the parent's stack" optimization, achieved for free by an
	// ordinary Go call instead of a hand-rolled context switch.

	popped2, ok2 := w.PopLocal()
	if ok2 {
		// f2 was not stolen: per the resolved open question in spec.md §9,
		// this must be f2 itself, since nothing else can have been pushed
		// to this worker's deque between the two pushes above and here —
		// any nested Fork2 calls inside f1's body fully resolve their own
		// pushes and pops before f1Fiber.Run returns.
		assertf(popped2 == f2Fiber, "fork2: expected f2 or nothing on the second local pop")
		f2Fiber.SetInline()
		p.Exec(w, f2Fiber)
		return
	}

	// f2 was stolen by another worker. There is no captured continuation
	// to resume: this goroutine's own return from Fork2 *is* the
	// continuation, so it must wait here. Rather than idling it helps —
	// draining whatever other ready work it can find — until the thief
	// finishes f2 and releases parent down to zero predecessors.
	for !parent.Ready() {
		if !w.TryServiceOnce(p) {
			runtime.Gosched()
		}
	}
}
