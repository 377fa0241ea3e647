package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gomlx/exceptions"

	"github.com/talgya/househunt/internal/colony"
	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/entropy"
	"github.com/talgya/househunt/internal/world"
)

// ColonyID is the ledger key of the single simulated colony.
const ColonyID world.ColonyID = 1

// stallTolerance is how far a site quorum may drift per tick before it
// counts as a change.
const stallTolerance = 2

// HaltReason says why a run stopped.
type HaltReason string

const (
	HaltNone      HaltReason = ""
	HaltCompleted HaltReason = "completed" // home nest vacated
	HaltCutoff    HaltReason = "cutoff"
	HaltStalled   HaltReason = "stalled"
	HaltCancelled HaltReason = "cancelled"
)

// Simulation runs one colony over one landscape and records its outcome.
type Simulation struct {
	Experiment *config.Experiment
	Seed       int64
	Landscape  *world.Landscape
	Home       *world.Site
	Candidates []*world.Site // every site but home, in landscape order
	Colony     *colony.Colony

	maxTicks uint64
	tick     uint64
	halt     HaltReason

	timeToVacate    uint64
	lastChange      uint64
	lastQuorums     []int
	recruitmentActs int

	traceOn bool
	trace   []TraceRow
}

// NewSimulation builds the landscape and colony for exp. A zero seed draws
// one from crypto/rand; Seed reports the value used.
func NewSimulation(exp *config.Experiment, seed int64) (*Simulation, error) {
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	rng := entropy.NewStream(seed)
	l, home, err := exp.Landscape(rng.Seed())
	if err != nil {
		return nil, fmt.Errorf("building landscape: %w", err)
	}
	c, err := colony.New(ColonyID, exp.Colony, home, rng)
	if err != nil {
		return nil, fmt.Errorf("building colony: %w", err)
	}

	s := &Simulation{
		Experiment: exp,
		Seed:       rng.Seed(),
		Landscape:  l,
		Home:       home,
		Candidates: l.Others(home),
		Colony:     c,
		traceOn:    exp.Run.Trace,
	}
	s.maxTicks = s.cutoff()
	s.lastQuorums = s.quorums()
	return s, nil
}

// cutoff is the time one tandem-runner would need to lead the whole colony
// to the farthest neighbour of home, unless overridden.
func (s *Simulation) cutoff() uint64 {
	if s.Experiment.Run.MaxTicks > 0 {
		return uint64(s.Experiment.Run.MaxTicks)
	}
	cfg := s.Colony.Config()
	ticks := float64(s.Landscape.MaxDistanceFrom(s.Home)) / float64(cfg.TandemRunSpeed) * float64(cfg.Size)
	return max(uint64(math.Ceil(ticks)), 1)
}

// MaxTicks returns the run's tick cutoff.
func (s *Simulation) MaxTicks() uint64 { return s.maxTicks }

// Tick returns the last tick processed.
func (s *Simulation) Tick() uint64 { return s.tick }

// Halted returns the halt reason, or HaltNone while running.
func (s *Simulation) Halted() HaltReason { return s.halt }

// Trace returns the per-tick rows recorded so far (empty unless tracing).
func (s *Simulation) Trace() []TraceRow { return s.trace }

func (s *Simulation) quorums() []int {
	q := make([]int, len(s.Landscape.Sites))
	for i, site := range s.Landscape.Sites {
		q[i] = site.QuorumSize()
	}
	return q
}

// Step runs one tick and reports whether the run has halted.
func (s *Simulation) Step(tick uint64) bool {
	if s.halt != HaltNone {
		return true
	}
	s.tick = tick
	if at := s.Experiment.Run.EmigrateAt; at > 0 && uint64(at) == tick {
		s.Colony.Emigrate()
	}
	if s.traceOn {
		s.trace = append(s.trace, s.traceRow(tick))
	}

	s.Colony.Tick()

	if s.timeToVacate == 0 && s.Home.QuorumSize() == 0 {
		s.timeToVacate = tick
	}
	current := s.quorums()
	for i, q := range current {
		if abs(q-s.lastQuorums[i]) > stallTolerance {
			s.lastQuorums = current
			s.lastChange = tick
			s.recruitmentActs = s.Colony.NumRecruitmentActs()
			break
		}
	}

	switch {
	case s.Home.QuorumSize() == 0 && s.Landscape.TotalQuorum(ColonyID) == s.Colony.Size():
		s.stop(HaltCompleted)
	case s.Experiment.Run.StallTicks > 0 && tick-s.lastChange >= uint64(s.Experiment.Run.StallTicks):
		s.stop(HaltStalled)
	case tick >= s.maxTicks:
		s.stop(HaltCutoff)
	}
	return s.halt != HaltNone
}

func (s *Simulation) stop(reason HaltReason) {
	s.halt = reason
	s.recruitmentActs = s.Colony.NumRecruitmentActs()
	slog.Info("run halted", "seed", s.Seed, "tick", s.tick, "reason", reason,
		"house_hunting", s.Colony.QuorumThreshold() > 0, "recruitment_acts", s.recruitmentActs)
}

// RunOptions control pacing and progress reporting of Run.
type RunOptions struct {
	Interval    time.Duration
	ReportEvery uint64
	OnReport    func(s *Simulation)
}

// Run drives the simulation until it halts or ctx is cancelled. Contract
// violations inside the colony are returned as errors.
func (s *Simulation) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	e := NewEngine(s.maxTicks)
	e.Tick = s.tick
	e.Interval = opts.Interval
	e.ReportEvery = opts.ReportEvery
	e.OnTick = s.Step
	if opts.OnReport != nil {
		e.OnReport = func(uint64) { opts.OnReport(s) }
	}

	slog.Info("run started", "seed", s.Seed, "sites", len(s.Landscape.Sites), "home", s.Home.Name,
		"colony_size", s.Colony.Size(), "max_ticks", s.maxTicks)

	var runErr error
	panicErr := exceptions.TryCatch[error](func() {
		_, runErr = e.Run(ctx)
	})
	if panicErr != nil {
		return s.Summary(), fmt.Errorf("run with seed %d failed at tick %d: %w", s.Seed, s.tick, panicErr)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			s.stop(HaltCancelled)
		}
		return s.Summary(), runErr
	}
	return s.Summary(), nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
