// Package worker implements the per-worker scheduler loop: pop local work,
// else attempt randomized steals, else consult the elastic policy and park,
// per spec.md §4.4.
package worker

import (
	"fmt"
	"sync/atomic"

	"github.com/ha1tch/forkjoin/pkg/deque"
	"github.com/ha1tch/forkjoin/pkg/elastic"
	"github.com/ha1tch/forkjoin/pkg/fiber"
	"github.com/ha1tch/forkjoin/pkg/rtlog"
	"github.com/ha1tch/forkjoin/pkg/stats"
	"pgregory.net/rand"
)

// StealPolicy selects how many steal attempts a worker makes per round
// before consulting the elastic policy (spec.md §4.4, §6).
type StealPolicy int

const (
	// StealOnce makes exactly one attempt per round.
	StealOnce StealPolicy = iota
	// StealCoupon makes W*100 attempts per round, amortizing wakeup
	// overhead over many failures (the "coupon collector" policy).
	StealCoupon
)

// Attempts returns the number of steal attempts per round for a pool of
// numWorkers workers.
func (p StealPolicy) Attempts(numWorkers int) int {
	if p == StealOnce {
		return 1
	}
	return numWorkers * 100
}

func (p StealPolicy) String() string {
	if p == StealOnce {
		return "once"
	}
	return "coupon"
}

// ParseStealPolicy parses the -steal_policy flag value (spec.md §6).
func ParseStealPolicy(s string) (StealPolicy, error) {
	switch s {
	case "once":
		return StealOnce, nil
	case "coupon", "":
		return StealCoupon, nil
	default:
		return 0, fmt.Errorf("worker: unknown steal policy %q", s)
	}
}

// Worker owns one deque and the random source it uses to pick steal
// victims. Its parking state lives in the pool's elastic policy, and the
// running fiber is not recorded here (Exec passes the worker to it as a
// Host instead). Workers are identified by a dense index in [0, W), per
// spec.md §3.
type Worker struct {
	ID    int
	deque *deque.Deque[*fiber.Fiber]
	rng   *rand.Rand
}

func newWorker(id int, seed uint64, initialCapacity int64) *Worker {
	return &Worker{
		ID:    id,
		deque: deque.New[*fiber.Fiber](initialCapacity),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// PushLocal pushes f onto this worker's own deque bottom and notifies the
// elastic policy that new work is available.
func (w *Worker) PushLocal(p *Pool, f *fiber.Fiber) {
	w.deque.PushBottom(f)
	p.elastic.OnPush(w.ID)
}

// PopLocal pops from this worker's own deque bottom.
func (w *Worker) PopLocal() (*fiber.Fiber, bool) {
	return w.deque.PopBottom()
}

// Pool owns every worker's deque plus the shared elastic policy, stats
// registry, and logger. Modeled as a value rather than process-wide
// globals so multiple pools can coexist in tests (Design Notes §9).
type Pool struct {
	Workers  []*Worker
	policy   StealPolicy
	elastic  elastic.Policy
	Stats    *stats.Registry
	Log      *rtlog.Logger
	terminal atomic.Bool
}

// NewPool creates a pool of numWorkers workers.
func NewPool(numWorkers int, policy StealPolicy, el elastic.Policy, st *stats.Registry, log *rtlog.Logger) *Pool {
	p := &Pool{
		Workers: make([]*Worker, numWorkers),
		policy:  policy,
		elastic: el,
		Stats:   st,
		Log:     log,
	}
	for i := range p.Workers {
		p.Workers[i] = newWorker(i, uint64(i)*0x9e3779b97f4a7c15+1, 256)
	}
	return p
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int { return len(p.Workers) }

// MarkTerminal records that the distinguished terminal fiber has finished
// (spec.md §4.4 step 5) and wakes every worker parked on the elastic
// policy. Without this, a worker already asleep when the terminal fires
// would never be woken again — nothing pushes after the terminal finishes
// — and Run would block forever on Park instead of observing
// TerminalFinished and returning.
func (p *Pool) MarkTerminal() {
	p.terminal.Store(true)
	p.elastic.WakeAll()
}

// TerminalFinished reports whether MarkTerminal has been called.
func (p *Pool) TerminalFinished() bool { return p.terminal.Load() }

// AllDequesEmpty reports whether every worker's deque is currently empty.
func (p *Pool) AllDequesEmpty() bool {
	for _, w := range p.Workers {
		if w.deque.Len() > 0 {
			return false
		}
	}
	return true
}

// schedule is the fiber-graph release callback: push a newly-released
// fiber onto workerID's deque. Silent fibers (pure fork2 join counters,
// see forkjoin.Context.Fork2) are never pushed or executed.
func (p *Pool) schedule(workerID int, f *fiber.Fiber) {
	if f.Silent() {
		return
	}
	p.Workers[workerID].PushLocal(p, f)
}

// Host identifies, to a fiber.Runnable, the worker and pool currently
// executing it. A task fiber resolves its forkjoin.Context from Host at
// Exec time rather than at fiber-creation time, because the worker that
// creates a fiber and the worker that ends up running it (after a steal)
// are not always the same one.
type Host struct {
	W *Worker
	P *Pool
}

// Exec runs f to completion on worker w, and if it finishes, notifies its
// successors onto w's own deque (a finished fiber's successors always
// start life on the worker that finished their last predecessor — they
// may of course be stolen from there immediately after).
func (p *Pool) Exec(w *Worker, f *fiber.Fiber) {
	status := f.Exec(Host{W: w, P: p})
	if status == fiber.StatusFinish {
		fiber.Notify(f, func(s *fiber.Fiber) {
			p.schedule(w.ID, s)
		})
	}
	// StatusPause: drop the reference; the fiber revives itself when its
	// own predecessor count reaches zero.
}

// steal makes up to the policy's configured number of randomized attempts
// against other workers, returning the first fiber it manages to take.
func (w *Worker) steal(p *Pool) (*fiber.Fiber, bool) {
	n := len(p.Workers)
	if n <= 1 {
		return nil, false
	}
	attempts := p.policy.Attempts(n)
	for i := 0; i < attempts; i++ {
		victim := w.rng.Intn(n)
		if victim == w.ID {
			continue
		}
		f, res := p.Workers[victim].deque.StealTop()
		switch res {
		case deque.StealOk:
			p.Stats.Worker(w.ID).NbSteals.Add(1)
			p.Log.Log(w.ID, rtlog.EventSteal, nil)
			return f, true
		case deque.StealAbort, deque.StealEmpty:
			continue
		}
	}
	return nil, false
}

// TryServiceOnce attempts one unit of scheduler progress: pop local work,
// else one steal round. Reports whether it executed something. This is the
// primitive both the top-level Run loop and forkjoin.Fork2's helping wait
// use, so a worker blocked on its own join continuation keeps draining
// ready work exactly like the top-level loop would.
func (w *Worker) TryServiceOnce(p *Pool) bool {
	if f, ok := w.PopLocal(); ok {
		p.Exec(w, f)
		return true
	}
	if f, ok := w.steal(p); ok {
		p.Exec(w, f)
		return true
	}
	return false
}

// Run is the per-worker scheduler loop (spec.md §4.4): service local and
// stolen work until the terminal fiber has finished and this worker's
// deque is empty.
func (w *Worker) Run(p *Pool) {
	for {
		if w.TryServiceOnce(p) {
			continue
		}
		if p.TerminalFinished() {
			return
		}
		// recheck re-attempts service after this worker is published as
		// asleep, so a push landing between the TryServiceOnce call above
		// and the elastic policy's asleep-flag store is never missed
		// (spec.md §4.6). Park also returns immediately once MarkTerminal
		// has woken everyone, so the next loop iteration's TerminalFinished
		// check above is what actually ends this worker's loop.
		p.elastic.Park(w.ID, func() bool { return w.TryServiceOnce(p) })
	}
}
