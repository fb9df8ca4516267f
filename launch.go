package forkjoin

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ha1tch/forkjoin/pkg/config"
	"github.com/ha1tch/forkjoin/pkg/elastic"
	"github.com/ha1tch/forkjoin/pkg/fiber"
	"github.com/ha1tch/forkjoin/pkg/rtlog"
	"github.com/ha1tch/forkjoin/pkg/stats"
	"github.com/ha1tch/forkjoin/pkg/topology"
	"github.com/ha1tch/forkjoin/pkg/worker"
)

// Options configures a Launch call. The zero value is a usable default:
// NumWorkers is resolved from the host's logical CPU count, StealPolicy is
// StealOnce, and every Config flag is off. Launch does not read the
// environment itself.
type Options struct {
	// NumWorkers overrides the worker count. Zero means probe the host via
	// pkg/topology.
	NumWorkers int
	// StealPolicy selects how many steal attempts a worker makes per round
	// before consulting the elastic policy. The zero value is StealOnce;
	// callers that want the default reported by spec.md §6 should set
	// worker.StealCoupon explicitly (or use worker.ParseStealPolicy, which
	// maps the empty string to StealCoupon, as the fjrun CLI does).
	StealPolicy worker.StealPolicy
	// Config carries the five environment flags (spec.md §6). It is used as
	// given; callers that want the environment's values pass
	// config.FromEnv(), as the fjrun CLI does.
	Config config.Config
}

// Report is the timing triple Launch returns on completion (spec.md §6):
// wall-clock elapsed time, and the process's user and system CPU time as
// reported by the OS for the timed body. Launch does not print it; Print
// writes the three stdout lines, and the fjrun CLI calls it after Launch.
type Report struct {
	ExecTime time.Duration
	UserTime time.Duration
	SysTime  time.Duration
	Totals   stats.Totals
}

// Print writes the three-line stdout contract spec.md §6 requires, in
// seconds with microsecond precision.
func (r Report) Print() {
	fmt.Printf("exectime %.6f\n", r.ExecTime.Seconds())
	fmt.Printf("usertime %.6f\n", r.UserTime.Seconds())
	fmt.Printf("systime %.6f\n", r.SysTime.Seconds())
}

// Launch is the runtime's bootstrap and top-level pipeline (spec.md §4.7):
// it builds the worker pool (or elides it entirely under
// SEQUENTIAL_ELISION), wires the fixed init -> pre -> before-timing -> body
// -> after-timing -> post -> terminal fiber chain, starts one goroutine per
// worker, waits for the terminal fiber, and returns timing plus counter
// totals for the whole run.
//
// pre and post run once, outside the timed region, exactly like the
// original's pre/post hooks around the timed algorithm body (spec.md §4.7);
// body is the user's parallel computation and is the only one of the three
// expected to call Context.Fork2 in practice, though all three may.
func Launch(opts Options, pre, body, post Task) (Report, error) {
	cfg := opts.Config

	if cfg.SequentialElision {
		return launchElided(pre, body, post)
	}

	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		info, err := topology.Probe()
		if err != nil && info.NumCPU <= 0 {
			return Report{}, fmt.Errorf("forkjoin: topology probe failed: %w", err)
		}
		numWorkers = info.NumCPU
	}
	assertf(numWorkers > 0, "Launch: resolved worker count must be positive, got %d", numWorkers)

	policy := opts.StealPolicy

	var el elastic.Policy
	if cfg.DisableElastic {
		el = elastic.Minimal{}
	} else {
		el = elastic.NewSleeping(numWorkers, cfg.ElasticSpinSleep, 1<<14)
	}

	st := stats.NewRegistry(numWorkers, cfg.EnableStats)

	var log *rtlog.Logger
	if cfg.EnableLogging {
		log = rtlog.New()
	} else {
		log = rtlog.Discard()
	}

	pool := worker.NewPool(numWorkers, policy, el, st, log)
	owner := pool.Workers[0]

	// started mirrors the original's process-wide "started" flag flipped by
	// the init step (Design Notes §9); here it is purely a local value the
	// init fiber closes over; nothing downstream consults it because, unlike
	// the original, this implementation must already know numWorkers before
	// any fiber can be pushed, so machine setup happens before init rather
	// than being gated by it.
	started := false

	var before, after unix.Rusage
	var wallStart, wallEnd time.Time

	done := make(chan struct{})

	initF := fiber.NewFunc(func() { started = true })
	beforeTiming := fiber.NewFunc(func() {
		wallStart = time.Now()
		_ = unix.Getrusage(unix.RUSAGE_SELF, &before)
	})
	bodyF := newTaskFiber(body)
	preF := newTaskFiber(pre)
	postF := newTaskFiber(post)
	afterTiming := fiber.NewFunc(func() {
		_ = unix.Getrusage(unix.RUSAGE_SELF, &after)
		wallEnd = time.Now()
	})
	terminal := fiber.NewFunc(func() {})
	terminal.OnFinish(func() {
		pool.MarkTerminal()
		close(done)
	})

	fiber.AddEdge(initF, preF)
	fiber.AddEdge(preF, beforeTiming)
	fiber.AddEdge(beforeTiming, bodyF)
	fiber.AddEdge(bodyF, afterTiming)
	fiber.AddEdge(afterTiming, postF)
	fiber.AddEdge(postF, terminal)

	log.Log(owner.ID, rtlog.EventEnterAlgo, nil)

	if fiber.Release(initF) {
		owner.PushLocal(pool, initF)
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for _, w := range pool.Workers {
		w := w
		go func() {
			defer wg.Done()
			w.Run(pool)
		}()
	}

	<-done
	wg.Wait()

	log.Log(owner.ID, rtlog.EventExitAlgo, nil)

	rep := Report{
		ExecTime: wallEnd.Sub(wallStart),
		UserTime: rusageDelta(before.Utime, after.Utime),
		SysTime:  rusageDelta(before.Stime, after.Stime),
		Totals:   st.Reduce(),
	}
	rep.Totals.NbSleeps = el.NumSleeps()
	return rep, nil
}

// launchElided runs pre, body, post in order on the calling goroutine with
// no worker pool at all (SEQUENTIAL_ELISION, spec.md §6): Fork2 becomes two
// ordinary calls, so the whole run is a single-threaded depth-first
// traversal of the fork tree (spec.md §8's elision-equivalence law).
func launchElided(pre, body, post Task) (Report, error) {
	ctx := &Context{elision: true}

	var before, after unix.Rusage
	wallStart := time.Now()
	_ = unix.Getrusage(unix.RUSAGE_SELF, &before)

	pre(ctx)
	body(ctx)
	post(ctx)

	_ = unix.Getrusage(unix.RUSAGE_SELF, &after)
	wallEnd := time.Now()

	return Report{
		ExecTime: wallEnd.Sub(wallStart),
		UserTime: rusageDelta(before.Utime, after.Utime),
		SysTime:  rusageDelta(before.Stime, after.Stime),
	}, nil
}

func rusageDelta(start, end unix.Timeval) time.Duration {
	startD := time.Duration(start.Sec)*time.Second + time.Duration(start.Usec)*time.Microsecond
	endD := time.Duration(end.Sec)*time.Second + time.Duration(end.Usec)*time.Microsecond
	return endD - startD
}
