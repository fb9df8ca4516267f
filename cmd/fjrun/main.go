// Command fjrun is the runtime's sample launcher (spec.md §6): it runs one
// of the built-in example bodies under the fork/join scheduler and prints
// the exectime/usertime/systime stdout contract.
package main

import (
	"fmt"
	"os"

	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"

	"github.com/ha1tch/forkjoin"
	"github.com/ha1tch/forkjoin/examples/fib"
	"github.com/ha1tch/forkjoin/examples/sum"
	"github.com/ha1tch/forkjoin/pkg/config"
	"github.com/ha1tch/forkjoin/pkg/worker"
)

func main() {
	app := &cli.App{
		Name:  "fjrun",
		Usage: "run a fork/join example under the scheduler",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "proc",
				Usage: "number of worker threads (0 probes the host)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "steal_policy",
				Usage: "steal policy: once or coupon",
				Value: "coupon",
			},
			&cli.Int64Flag{
				Name:  "n",
				Usage: "input size for the selected example",
				Value: 1000000,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sum",
				Usage: "parallel sum of 1..n",
				Action: func(c *cli.Context) error {
					return run(c, func(ctx *forkjoin.Context) int64 {
						return sum.Range(ctx, 1, c.Int64("n"))
					})
				},
			},
			{
				Name:  "fib",
				Usage: "parallel fibonacci(n)",
				Action: func(c *cli.Context) error {
					return run(c, func(ctx *forkjoin.Context) int64 {
						return fib.Fib(ctx, c.Int64("n"))
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context, compute func(*forkjoin.Context) int64) error {
	policy, err := worker.ParseStealPolicy(c.String("steal_policy"))
	if err != nil {
		return err
	}

	var result int64
	body := func(ctx *forkjoin.Context) { result = compute(ctx) }
	noop := func(*forkjoin.Context) {}

	opts := forkjoin.Options{
		NumWorkers:  c.Int("proc"),
		StealPolicy: policy,
		Config:      config.FromEnv(),
	}

	report, err := forkjoin.Launch(opts, noop, body, noop)
	if err != nil {
		return err
	}

	fmt.Printf("result %d\n", result)
	report.Print()
	fmt.Printf("fibers %s  steals %s  sleeps %s\n",
		unitconv.FormatPrefix(float64(report.Totals.NbFibers), unitconv.SI, 0),
		unitconv.FormatPrefix(float64(report.Totals.NbSteals), unitconv.SI, 0),
		unitconv.FormatPrefix(float64(report.Totals.NbSleeps), unitconv.SI, 0),
	)
	return nil
}
