// Package engine provides the tick-based simulation loop and the experiment
// driver that runs a colony to a halt and collects its metrics.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// Engine drives a simulation forward one tick at a time.
type Engine struct {
	Tick     uint64        // Last tick processed (monotonic)
	MaxTicks uint64        // Hard cutoff; 0 = unbounded
	Interval time.Duration // Minimum wall time per tick; 0 = as fast as possible

	// ReportEvery calls OnReport every n ticks (0 = never).
	ReportEvery uint64

	// OnTick runs every tick and returns true to halt the loop.
	OnTick   func(tick uint64) (halt bool)
	OnReport func(tick uint64)
}

// NewEngine creates an unpaced engine with the given cutoff.
func NewEngine(maxTicks uint64) *Engine {
	return &Engine{MaxTicks: maxTicks}
}

// Run advances the engine until OnTick asks to halt, the cutoff is reached
// or ctx is cancelled. It reports whether OnTick halted the loop; a
// cancelled context is returned as its error.
func (e *Engine) Run(ctx context.Context) (halted bool, err error) {
	slog.Debug("simulation engine started", "tick", e.Tick, "max_ticks", e.MaxTicks, "interval", e.Interval)
	defer func() {
		slog.Debug("simulation engine stopped", "tick", e.Tick, "halted", halted)
	}()

	var timer *time.Timer
	if e.Interval > 0 {
		timer = time.NewTimer(0)
		defer timer.Stop()
	}

	for e.MaxTicks == 0 || e.Tick < e.MaxTicks {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		start := time.Now()

		if e.step() {
			return true, nil
		}

		if timer == nil {
			continue
		}
		// Sleep for the remainder of the tick interval.
		wait := e.Interval - time.Since(start)
		if wait <= 0 {
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, nil
}

// step advances by one tick.
func (e *Engine) step() bool {
	e.Tick++
	halt := false
	if e.OnTick != nil {
		halt = e.OnTick(e.Tick)
	}
	if e.OnReport != nil && e.ReportEvery > 0 && (halt || e.Tick%e.ReportEvery == 0) {
		e.OnReport(e.Tick)
	}
	return halt
}
