// Package bench times repeated executions of a converted program.
package bench

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/tcvm/pkg/bytecode"
)

var log = commonlog.GetLogger("tcvm.bench")

// Defaults match the reference driver: 10 warm-up runs, then 100 measured.
const (
	DefaultWarmup     = 10
	DefaultIterations = 100
)

// Options configures a benchmark.
type Options struct {
	Warmup     int // Unmeasured runs before sampling; negative means none
	Iterations int // Measured runs; zero means DefaultIterations
	Parallel   int // Workers sharing the program; zero or one is sequential

	// Engine runs every iteration. Its Out receives each run's output; with
	// Parallel > 1 writes to it are serialized, one PRINT line at a time,
	// together with the OnSample calls.
	Engine bytecode.Engine

	// OnSample, when set, is called once per measured run. Calls are
	// serialized; with Parallel > 1 they arrive in completion order.
	OnSample func(iteration int, elapsed time.Duration)
}

// Report is the outcome of one benchmark.
type Report struct {
	ID        string
	Name      string
	StartedAt time.Time

	Warmup          int
	Iterations      int
	Parallel        int
	StackDepthLimit int

	Samples []time.Duration // Indexed by iteration
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration

	// Dispatch statistics of one run; every run of a program dispatches
	// identically.
	Steps    uint64
	Resumes  int
	MaxChain int
}

func (o Options) withDefaults() Options {
	if o.Warmup == 0 {
		o.Warmup = DefaultWarmup
	}
	if o.Warmup < 0 {
		o.Warmup = 0
	}
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.Parallel <= 0 {
		o.Parallel = 1
	}
	if o.Engine.StackDepthLimit <= 0 {
		o.Engine.StackDepthLimit = bytecode.DefaultStackDepthLimit
	}
	return o
}

// Run executes p opts.Warmup times unmeasured, then opts.Iterations times
// measured. Cancellation of ctx is checked between iterations.
func Run(ctx context.Context, p *bytecode.Program, name string, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	r := &Report{
		ID:              uuid.New().String(),
		Name:            name,
		StartedAt:       time.Now().UTC(),
		Warmup:          opts.Warmup,
		Iterations:      opts.Iterations,
		Parallel:        opts.Parallel,
		StackDepthLimit: opts.Engine.StackDepthLimit,
		Samples:         make([]time.Duration, opts.Iterations),
	}
	log.Infof("benchmark %s: %s, %d warm-up, %d iterations, %d workers",
		r.ID, name, opts.Warmup, opts.Iterations, opts.Parallel)

	engine := opts.Engine
	if engine.Verify {
		if err := bytecode.Validate(p); err != nil {
			return nil, err
		}
		engine.Verify = false
	}

	var mu sync.Mutex
	if opts.Parallel > 1 && engine.Out != nil {
		engine.Out = &lockedWriter{mu: &mu, w: engine.Out}
	}

	for i := 0; i < opts.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := engine.Run(p); err != nil {
			return nil, fmt.Errorf("warm-up run %d: %w", i, err)
		}
	}

	var stats bytecode.Stats
	measure := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		res, err := engine.Run(p)
		elapsed := time.Since(start)
		if err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
		if res.OutputErr != nil {
			log.Warningf("run %d: output: %s", i, res.OutputErr)
		}

		mu.Lock()
		defer mu.Unlock()
		r.Samples[i] = elapsed
		stats = res.Stats
		if opts.OnSample != nil {
			opts.OnSample(i, elapsed)
		}
		return nil
	}

	if opts.Parallel == 1 {
		for i := 0; i < opts.Iterations; i++ {
			if err := measure(i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		ctx = gctx
		g.SetLimit(opts.Parallel)
		for i := 0; i < opts.Iterations; i++ {
			g.Go(func() error { return measure(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	r.Steps, r.Resumes, r.MaxChain = stats.Steps, stats.Resumes, stats.MaxChain
	r.summarize()
	log.Infof("benchmark %s: mean %s, min %s, max %s", r.ID, r.Mean, r.Min, r.Max)
	return r, nil
}

func (r *Report) summarize() {
	if len(r.Samples) == 0 {
		return
	}
	var total time.Duration
	r.Min, r.Max = r.Samples[0], r.Samples[0]
	for _, d := range r.Samples {
		total += d
		r.Min = min(r.Min, d)
		r.Max = max(r.Max, d)
	}
	r.Mean = total / time.Duration(len(r.Samples))
}

// lockedWriter lets parallel runs share one output.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
