package forkjoin_test

import (
	"testing"

	"github.com/ha1tch/forkjoin"
	"github.com/ha1tch/forkjoin/examples/fib"
	"github.com/ha1tch/forkjoin/examples/sum"
	"github.com/ha1tch/forkjoin/pkg/config"
	"github.com/ha1tch/forkjoin/pkg/worker"
)

func TestSumOneToAMillion(t *testing.T) {
	const n = 1000000
	want := int64(n) * (n + 1) / 2

	var got int64
	noop := func(*forkjoin.Context) {}
	body := func(ctx *forkjoin.Context) { got = sum.Range(ctx, 1, n) }

	opts := forkjoin.Options{NumWorkers: 4, StealPolicy: worker.StealCoupon}
	if _, err := forkjoin.Launch(opts, noop, body, noop); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got != want {
		t.Fatalf("sum 1..%d = %d, want %d", n, got, want)
	}
}

func TestFibThirty(t *testing.T) {
	const n = 30
	want := int64(832040)

	var got int64
	noop := func(*forkjoin.Context) {}
	body := func(ctx *forkjoin.Context) { got = fib.Fib(ctx, n) }

	opts := forkjoin.Options{NumWorkers: 4, StealPolicy: worker.StealCoupon}
	if _, err := forkjoin.Launch(opts, noop, body, noop); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got != want {
		t.Fatalf("fib(%d) = %d, want %d", n, got, want)
	}
}

// TestNoSteal is the "no-steal" scenario from spec.md §8: a single-worker
// pool has nothing to steal from, so every fork2 call must resolve via the
// direct-call fast path alone.
func TestNoSteal(t *testing.T) {
	const n = 5000
	want := int64(n) * (n + 1) / 2

	var got int64
	noop := func(*forkjoin.Context) {}
	body := func(ctx *forkjoin.Context) { got = sum.Range(ctx, 1, n) }

	opts := forkjoin.Options{NumWorkers: 1, StealPolicy: worker.StealOnce}
	if _, err := forkjoin.Launch(opts, noop, body, noop); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got != want {
		t.Fatalf("sum 1..%d = %d, want %d", n, got, want)
	}
}

// TestElasticWake is the "elastic-wake" scenario from spec.md §8: with the
// Sleeping policy enabled (the default, DISABLE_ELASTIC unset) and more
// workers than there is initial work, idle workers must park and then be
// woken when new work is pushed rather than spin forever or deadlock.
func TestElasticWake(t *testing.T) {
	const n = 200000
	want := int64(n) * (n + 1) / 2

	var got int64
	noop := func(*forkjoin.Context) {}
	body := func(ctx *forkjoin.Context) { got = sum.Range(ctx, 1, n) }

	opts := forkjoin.Options{
		NumWorkers:  8,
		StealPolicy: worker.StealCoupon,
		Config:      config.Config{ElasticSpinSleep: false},
	}
	report, err := forkjoin.Launch(opts, noop, body, noop)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got != want {
		t.Fatalf("sum 1..%d = %d, want %d", n, got, want)
	}
	if report.ExecTime <= 0 {
		t.Fatalf("expected positive exec time, got %v", report.ExecTime)
	}
}

// TestChainTiming exercises the fixed pre -> body -> post pipeline order
// (spec.md §8's chain-timing scenario): pre must run before body, and post
// must run after body, regardless of how many workers service the run.
func TestChainTiming(t *testing.T) {
	var order []string

	pre := func(*forkjoin.Context) { order = append(order, "pre") }
	body := func(ctx *forkjoin.Context) {
		order = append(order, "body-start")
		sum.Range(ctx, 1, 2000)
		order = append(order, "body-end")
	}
	post := func(*forkjoin.Context) { order = append(order, "post") }

	opts := forkjoin.Options{NumWorkers: 4, StealPolicy: worker.StealCoupon}
	if _, err := forkjoin.Launch(opts, pre, body, post); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	want := []string{"pre", "body-start", "body-end", "post"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestSequentialElision verifies spec.md §8's elision-equivalence law: under
// SequentialElision, Fork2 degenerates to two ordinary calls and the result
// is identical to the parallel computation.
func TestSequentialElision(t *testing.T) {
	const n = 30
	want := int64(832040)

	var got int64
	noop := func(*forkjoin.Context) {}
	body := func(ctx *forkjoin.Context) { got = fib.Fib(ctx, n) }

	opts := forkjoin.Options{Config: config.Config{SequentialElision: true}}
	if _, err := forkjoin.Launch(opts, noop, body, noop); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got != want {
		t.Fatalf("fib(%d) = %d, want %d", n, got, want)
	}
}
