// Package stats implements the runtime's three counters — nb_fibers,
// nb_steals, nb_sleeps — per spec.md §6. Each worker owns its own set of
// counters to avoid cross-core contention on the hot path; Reduce sums them
// for reporting at the end of Launch.
//
// Increment points (spec.md §9, second open question, resolved here):
//   - nb_fibers: incremented by exactly 2 on every Fork2 call, before
//     either child is released (forkjoin.Fork2).
//   - nb_steals: incremented once per successful pkg/deque.StealTop call
//     that returns StealOk, never per attempt (pkg/worker).
//   - nb_sleeps: incremented once per elastic.Policy.Park call that
//     reaches the blocking semaphore wait (counted even when a wake was
//     already pending), not calls that returned during the spin window or
//     on a recheck hit (pkg/elastic).
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// PerWorker holds one worker's counters.
type PerWorker struct {
	NbFibers atomic.Uint64
	NbSteals atomic.Uint64
	NbSleeps atomic.Uint64
}

// Totals is the reduction of all workers' counters.
type Totals struct {
	NbFibers uint64
	NbSteals uint64
	NbSleeps uint64
}

// Registry owns one PerWorker per worker and an optional Prometheus export.
type Registry struct {
	workers []PerWorker
	enabled bool

	promFibers prometheus.Counter
	promSteals prometheus.Counter
	promSleeps prometheus.Counter
}

// NewRegistry creates a registry sized for numWorkers. When enabled is
// false (ENABLE_STATS unset) counters are still updated — they are cheap
// atomics — but no Prometheus counters are created: Collectors returns nil
// and Reduce exports nothing, mirroring the original's compile-time
// MCSL_ENABLE_STATS gate reified as a runtime flag (Design Notes §9).
func NewRegistry(numWorkers int, enabled bool) *Registry {
	r := &Registry{
		workers: make([]PerWorker, numWorkers),
		enabled: enabled,
	}
	if enabled {
		r.promFibers = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forkjoin",
			Name:      "nb_fibers_total",
			Help:      "Total fibers created via Fork2.",
		})
		r.promSteals = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forkjoin",
			Name:      "nb_steals_total",
			Help:      "Total successful deque steals.",
		})
		r.promSleeps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forkjoin",
			Name:      "nb_sleeps_total",
			Help:      "Total times a worker parked on its semaphore.",
		})
	}
	return r
}

// Worker returns the PerWorker counters for workerID.
func (r *Registry) Worker(workerID int) *PerWorker { return &r.workers[workerID] }

// Collectors returns the Prometheus collectors to register with a
// *prometheus.Registry, or nil when stats are disabled.
func (r *Registry) Collectors() []prometheus.Collector {
	if !r.enabled {
		return nil
	}
	return []prometheus.Collector{r.promFibers, r.promSteals, r.promSleeps}
}

// Reduce sums every worker's counters and, if enabled, adds those totals
// to the Prometheus counters; each call adds the full totals again.
func (r *Registry) Reduce() Totals {
	var t Totals
	for i := range r.workers {
		w := &r.workers[i]
		t.NbFibers += w.NbFibers.Load()
		t.NbSteals += w.NbSteals.Load()
		t.NbSleeps += w.NbSleeps.Load()
	}
	if r.enabled {
		r.promFibers.Add(float64(t.NbFibers))
		r.promSteals.Add(float64(t.NbSteals))
		r.promSleeps.Add(float64(t.NbSleeps))
	}
	return t
}
