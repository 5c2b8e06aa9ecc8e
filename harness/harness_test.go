package harness_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tasklab/tasklab/dispatch/simrt"
	"github.com/tasklab/tasklab/harness"
	"github.com/tasklab/tasklab/internal/state"
)

func TestBurninAllCompliantRunsNeverFail(t *testing.T) {
	cfg := harness.BurninConfig{
		Name:     "t",
		NRuns:    5,
		MaxTasks: 12,
		ExecBase: 0,
		MaxR:     0,
		TempDir:  t.TempDir(),
		Runtime:  simrt.Compliant(),
	}

	stats, err := harness.Burnin(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Runs)
	require.Equal(t, 0, stats.Failures)
	require.Empty(t, stats.FailedPaths)
}

func TestBurninPersistsFailingGraphsAndPublishesProgress(t *testing.T) {
	dir := t.TempDir()
	cfg := harness.BurninConfig{
		Name:     "scenario5",
		NRuns:    15,
		MaxTasks: 20,
		ExecBase: 0,
		MaxR:     0,
		TempDir:  dir,
		Runtime:  simrt.Violating(),
	}

	var progress state.DynamicValue[harness.Stats]
	var inFlight state.InFlightCounter
	obs := &harness.Observers{Progress: &progress, InFlight: &inFlight}

	stats, err := harness.Burnin(context.Background(), cfg, obs)
	require.NoError(t, err)

	last, _ := progress.Load()
	require.Equal(t, *stats, last)
	require.True(t, inFlight.IsZero(), "InFlight increments/decrements must balance across every run")

	if stats.Failures > 0 {
		require.NotEmpty(t, stats.FailedPaths)
		for _, p := range stats.FailedPaths {
			require.True(t, filepath.IsAbs(p) || filepath.Dir(p) == dir)
			_, err := os.Stat(p)
			require.NoError(t, err)
		}
	}
}

func TestBurninRejectsInvalidConfig(t *testing.T) {
	_, err := harness.Burnin(context.Background(), harness.BurninConfig{}, nil)
	require.ErrorIs(t, err, harness.ErrConfig)
}

func TestBurninRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := harness.BurninConfig{
		Name:     "t",
		NRuns:    3,
		MaxTasks: 5,
		TempDir:  t.TempDir(),
		Runtime:  simrt.Compliant(),
	}

	_, err := harness.Burnin(ctx, cfg, nil)
	require.ErrorIs(t, err, context.Canceled)
}
