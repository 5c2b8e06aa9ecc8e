package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tasklab/tasklab/dispatch"
	"github.com/tasklab/tasklab/dispatch/simrt"
	"github.com/tasklab/tasklab/gen"
	"github.com/tasklab/tasklab/graph"
	"pgregory.net/rapid"
)

func TestDispatchRejectsEmptyGraph(t *testing.T) {
	_, err := dispatch.Dispatch(context.Background(), &graph.Model{}, simrt.Compliant())
	require.ErrorIs(t, err, graph.ErrEmptyGraph)
}

func TestDispatchSucceedsAgainstCompliantRuntime(t *testing.T) {
	cfg := gen.Config{N: 20, M: 4, DepRange: 6, ExecBase: 0, MaxR: 0}
	m, err := gen.Generate(cfg)
	require.NoError(t, err)

	report, err := dispatch.Dispatch(context.Background(), m, simrt.Compliant())
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Empty(t, report.Violations)
}

// TestDispatchPropertyP7 checks P7 (dispatch soundness): against
// simrt.Compliant, every dispatch of a generated graph reports success.
func TestDispatchPropertyP7(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := gen.Config{
			N:        rapid.IntRange(1, 25).Draw(t, "N"),
			M:        rapid.IntRange(0, 6).Draw(t, "M"),
			DepRange: rapid.IntRange(1, 10).Draw(t, "DepRange"),
			ExecBase: 0,
			MaxR:     0,
		}
		m, err := gen.Generate(cfg)
		require.NoError(t, err)

		report, err := dispatch.Dispatch(context.Background(), m, simrt.Compliant())
		require.NoError(t, err)
		require.False(t, report.Failed())
	})
}

// TestDispatchPropertyP8 checks P8 (dispatch detection): a graph that
// contains at least one dependency edge, dispatched against
// simrt.Violating enough times, eventually reports a named
// SchedulerViolation. Violating's victim is chosen at random among
// eligible producers, so this retries rather than asserting on one run
// (scenario 5).
func TestDispatchPropertyP8(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := gen.Config{
			N:        rapid.IntRange(2, 20).Draw(t, "N"),
			M:        rapid.IntRange(1, 6).Draw(t, "M"),
			DepRange: rapid.IntRange(1, 8).Draw(t, "DepRange"),
			ExecBase: 0,
			MaxR:     0,
		}
		m, err := gen.Generate(cfg)
		require.NoError(t, err)
		if m.NDeps == 0 {
			return
		}

		var reported bool
		for attempt := 0; attempt < 20 && !reported; attempt++ {
			report, err := dispatch.Dispatch(context.Background(), m, simrt.Violating())
			if err != nil {
				require.ErrorIs(t, err, dispatch.ErrSchedulerViolation)
			}
			if report.Failed() {
				reported = true
				require.NotEmpty(t, report.Violations)
			}
		}
		require.True(t, reported, "violating runtime never reported a violation across 20 attempts")
	})
}

// TestDispatchScenario5 exercises the scenario 5 shape directly: a small
// fixed chain dispatched against simrt.Violating until the deliberately
// reordered producer's dependent is named in the report.
func TestDispatchScenario5(t *testing.T) {
	cfg := gen.Config{N: 6, M: 2, DepRange: 3, ExecBase: 0, MaxR: 0}
	m, err := gen.Generate(cfg)
	require.NoError(t, err)
	require.Greater(t, m.NDeps, 0)

	var sawViolation bool
	for attempt := 0; attempt < 30 && !sawViolation; attempt++ {
		report, err := dispatch.Dispatch(context.Background(), m, simrt.Violating())
		if report.Failed() {
			sawViolation = true
			require.ErrorIs(t, err, dispatch.ErrSchedulerViolation)
		}
	}
	require.True(t, sawViolation)
}

