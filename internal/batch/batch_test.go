package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/engine"
)

func quickExperiment() *config.Experiment {
	exp := config.Default()
	exp.Run.MaxTicks = 400
	return exp
}

func TestRunIsOrderedAndDeterministic(t *testing.T) {
	exp := quickExperiment()
	results, stats, err := Run(context.Background(), exp, Options{Runs: 6, Parallel: 3, FirstSeed: 100})
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, 6, stats.Done)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, int64(100+i), r.Summary.Seed)

		sim, err := engine.NewSimulation(exp, r.Summary.Seed)
		require.NoError(t, err)
		sum, err := sim.Run(context.Background(), engine.RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, sum, r.Summary, "parallel run %d matches a serial one", i)
	}
	assert.Contains(t, stats.String(), "Ran 6 of 6")
}

func TestRunWithRandomSites(t *testing.T) {
	exp := quickExperiment()
	exp.RandomSites = config.DefaultRandomSites(3)
	calls := 0
	results, stats, err := Run(context.Background(), exp, Options{
		Runs: 4, Parallel: 2, FirstSeed: 7,
		OnResult: func(r Result, s *Stats) error {
			calls++
			assert.Len(t, r.Summary.Sites, 4)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, 4, calls)
	assert.LessOrEqual(t, stats.Optimal, stats.Done)
}

func TestRunStopsOnCallbackError(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	results, stats, err := Run(context.Background(), quickExperiment(), Options{
		Runs: 5, Parallel: 1, FirstSeed: 1,
		OnResult: func(Result, *Stats) error {
			calls++
			return boom
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "queued runs are skipped after a failure")
	assert.Equal(t, 1, stats.Done)
	assert.Len(t, results, 1)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, _, err := Run(ctx, quickExperiment(), Options{Runs: 5, FirstSeed: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, _, err := Run(context.Background(), quickExperiment(), Options{Runs: 0})
	assert.Error(t, err)

	_, _, err = Run(context.Background(), quickExperiment(), Options{Runs: 3, FirstSeed: -1})
	assert.ErrorContains(t, err, "first seed")

	exp := quickExperiment()
	exp.Colony.Size = -1
	_, _, err = Run(context.Background(), exp, Options{Runs: 1})
	assert.Error(t, err)
}

func TestStatsMeans(t *testing.T) {
	var s Stats
	assert.Zero(t, s.MeanCompletion())
	s.add(engine.Summary{Halt: engine.HaltCompleted, TimeToCompletion: 10, RecruitmentActs: 4, FinalDecisionOptimal: true})
	s.add(engine.Summary{Halt: engine.HaltCutoff, ColonySplit: true, RecruitmentActs: 2})
	assert.Equal(t, 10.0, s.MeanCompletion())
	assert.Equal(t, 3.0, s.MeanRecruitmentActs())
	assert.Equal(t, 1, s.Split)
	assert.Equal(t, 1, s.Optimal)
}
