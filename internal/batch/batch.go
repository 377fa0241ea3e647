// Package batch runs many independent seeds of one experiment in parallel.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/engine"
	"github.com/talgya/househunt/internal/entropy"
)

// Options control a batch.
type Options struct {
	Runs      int
	Parallel  int   // 0 = number of CPUs
	FirstSeed int64 // runs use FirstSeed, FirstSeed+1, ...; 0 = random start, negative is rejected

	// OnResult is called once per finished run, serialized, in completion order.
	OnResult func(r Result, stats *Stats) error
}

// Result is one finished run.
type Result struct {
	Index   int
	Sim     *engine.Simulation
	Summary engine.Summary
}

// Stats aggregates finished runs.
type Stats struct {
	start time.Time

	Total, Done               int
	Completed, Split, Optimal int

	sumCompletion, sumRecruitActs uint64
}

// MeanCompletion is the mean time to completion over completed runs.
func (s *Stats) MeanCompletion() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.sumCompletion) / float64(s.Completed)
}

// MeanRecruitmentActs is the mean number of recruitment acts per run.
func (s *Stats) MeanRecruitmentActs() float64 {
	if s.Done == 0 {
		return 0
	}
	return float64(s.sumRecruitActs) / float64(s.Done)
}

func (s *Stats) add(sum engine.Summary) {
	s.Done++
	if sum.Halt == engine.HaltCompleted {
		s.Completed++
		s.sumCompletion += sum.TimeToCompletion
	}
	if sum.ColonySplit {
		s.Split++
	}
	if sum.FinalDecisionOptimal {
		s.Optimal++
	}
	s.sumRecruitActs += uint64(sum.RecruitmentActs)
}

func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

func (s *Stats) String() string {
	return fmt.Sprintf("Ran %d of %d: %d completed, %.1f%% split, %.1f%% optimal, mean completion %s ticks - %s",
		s.Done, s.Total, s.Completed, rate(s.Split, s.Done), rate(s.Optimal, s.Done),
		humanize.CommafWithDigits(s.MeanCompletion(), 1), time.Since(s.start).Round(time.Millisecond))
}

// Run executes opts.Runs seeds of exp and returns the results in seed
// order. Cancelling ctx stops the remaining runs; finished results are
// still returned along with ctx's error.
func Run(ctx context.Context, exp *config.Experiment, opts Options) ([]Result, *Stats, error) {
	if opts.Runs <= 0 {
		return nil, nil, fmt.Errorf("batch: runs must be > 0, got %d", opts.Runs)
	}
	if err := exp.Validate(); err != nil {
		return nil, nil, fmt.Errorf("batch: %w", err)
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if opts.FirstSeed < 0 {
		return nil, nil, fmt.Errorf("batch: first seed must be >= 0, got %d", opts.FirstSeed)
	}
	firstSeed := opts.FirstSeed
	if firstSeed == 0 {
		firstSeed = entropy.CryptoSeed() >> 16 // leave room for the run offsets
	}

	stats := &Stats{start: time.Now(), Total: opts.Runs}
	results := make([]Result, opts.Runs)
	finished := make([]bool, opts.Runs)
	var mu sync.Mutex

	slog.Info("batch started", "runs", opts.Runs, "parallel", parallel, "first_seed", firstSeed)
	wg, runCtx := errgroup.WithContext(ctx)
	wg.SetLimit(parallel)
	for idx := range opts.Runs {
		wg.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}
			sim, err := engine.NewSimulation(exp, firstSeed+int64(idx))
			if err != nil {
				return err
			}
			sum, err := sim.Run(runCtx, engine.RunOptions{})
			if err != nil {
				if runCtx.Err() != nil {
					return nil
				}
				return fmt.Errorf("batch run %d: %w", idx, err)
			}

			mu.Lock()
			defer mu.Unlock()
			results[idx] = Result{Index: idx, Sim: sim, Summary: sum}
			finished[idx] = true
			stats.add(sum)
			if opts.OnResult != nil {
				return opts.OnResult(results[idx], stats)
			}
			return nil
		})
	}
	err := wg.Wait()

	done := results[:0]
	for i, r := range results {
		if finished[i] {
			done = append(done, r)
		}
	}
	slog.Info("batch finished", "stats", stats.String())
	if err == nil {
		err = ctx.Err()
	}
	return done, stats, err
}
