package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/chazu/tcvm/bench"
)

var (
	WarmupFlag = &cli.IntFlag{
		Name:  "warmup",
		Usage: "unmeasured runs before sampling (negative for none)",
	}
	IterationsFlag = &cli.IntFlag{
		Name:  "iterations",
		Usage: "measured runs",
	}
	ParallelFlag = &cli.IntFlag{
		Name:  "parallel",
		Usage: "workers executing the program concurrently",
	}
	QuietFlag = &cli.BoolFlag{
		Name:  "quiet",
		Usage: "discard program output during the benchmark",
	}
	SaveFlag = &cli.BoolFlag{
		Name:  "save",
		Usage: "store the results in the results database",
	}
	LimitRowsFlag = &cli.IntFlag{
		Name:  "n",
		Value: 10,
		Usage: "number of runs to show",
	}
)

var benchCommand = &cli.Command{
	Name:      "bench",
	Usage:     "Time repeated executions of a program",
	ArgsUsage: "[file.tca|file.tcb]",
	Flags: append([]cli.Flag{
		WarmupFlag, IterationsFlag, ParallelFlag, QuietFlag, SaveFlag,
	}, programFlags...),
	Action: benchCmd,
}

func benchCmd(ctx *cli.Context) error {
	cfg := config(ctx)
	name, _, p, err := convertProgram(ctx)
	if err != nil {
		return err
	}

	opts := bench.Options{
		Warmup:     cfg.Bench.Warmup,
		Iterations: cfg.Bench.Iterations,
		Parallel:   cfg.Bench.Parallel,
		Engine:     engine(ctx),
	}
	if opts.Warmup == 0 {
		opts.Warmup = -1
	}
	if ctx.IsSet(WarmupFlag.Name) {
		opts.Warmup = ctx.Int(WarmupFlag.Name)
	}
	if ctx.IsSet(IterationsFlag.Name) {
		opts.Iterations = ctx.Int(IterationsFlag.Name)
	}
	if ctx.IsSet(ParallelFlag.Name) {
		opts.Parallel = ctx.Int(ParallelFlag.Name)
	}
	opts.Engine.Trace = nil
	if ctx.Bool(QuietFlag.Name) {
		opts.Engine.Out = io.Discard
	}

	w := ctx.App.Writer
	opts.OnSample = func(_ int, elapsed time.Duration) {
		fmt.Fprintf(w, "Time elapsed: %10d ns\n", elapsed.Nanoseconds())
	}

	r, err := bench.Run(ctx.Context, p, name, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Average of %d results: %10d ns\n", r.Iterations, r.Mean.Nanoseconds())

	if ctx.Bool(SaveFlag.Name) {
		store, err := bench.OpenStore(cfg.ResultsPath())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx.Context, r); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.ErrWriter, "saved run %s\n", r.ID)
	}
	return nil
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List recent saved benchmark runs",
	Flags: []cli.Flag{LimitRowsFlag},
	Action: func(ctx *cli.Context) error {
		store, err := bench.OpenStore(config(ctx).ResultsPath())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(ctx.Context, ctx.Int(LimitRowsFlag.Name))
		if err != nil {
			return err
		}
		renderHistory(ctx.App.Writer, runs)
		return nil
	},
}

func renderHistory(w io.Writer, runs []bench.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Program", "Started", "Iterations", "Workers", "Limit", "Mean", "Min", "Max", "Resumes"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		table.Append([]string{
			id,
			r.Name,
			humanize.Time(r.StartedAt),
			humanize.Comma(int64(r.Iterations)),
			strconv.Itoa(r.Parallel),
			strconv.Itoa(r.StackDepthLimit),
			r.Mean.String(),
			r.Min.String(),
			r.Max.String(),
			humanize.Comma(int64(r.Resumes)),
		})
	}
	table.Render()
}
