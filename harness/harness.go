// Package harness implements the burn-in loop: repeatedly generate a
// graph, dispatch it, and aggregate pass/fail counts, persisting any
// failing graph for later inspection. Every run generates a fresh graph;
// the loop does not restore persisted graphs. Grounded on
// original_source/v03/tasklab.cpp's TaskLab::burnin(nruns, max_t, rt).
//
// Out of the 2,400-line core scope (spec §1 treats the interactive
// shell and its surrounding glue as external), this package exists as a
// small, fully tested reference implementation so scenario 5 is
// exercisable end to end.
package harness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/tasklab/tasklab/config"
	"github.com/tasklab/tasklab/dispatch"
	"github.com/tasklab/tasklab/gen"
	"github.com/tasklab/tasklab/internal/cerr"
	"github.com/tasklab/tasklab/internal/state"
	"github.com/tasklab/tasklab/internal/timerp"
	"github.com/tasklab/tasklab/persist"
	"github.com/tasklab/tasklab/telemetry"
	"go.uber.org/zap"
)

// ErrConfig is returned when a BurninConfig fails validation.
const ErrConfig cerr.Error = "harness: invalid burn-in configuration"

// BurninConfig controls one Burnin call. Each run generates a random
// graph of between 1 and MaxTasks tasks, with a max-predecessors count
// drawn uniformly from [1, n/2+1] and a locality window drawn uniformly
// from [1, n], where n is the run's task count, then dispatches it
// against Runtime.
type BurninConfig struct {
	Name     string `validate:"required"`
	NRuns    int    `validate:"required,gte=1"`
	MaxTasks int    `validate:"required,gte=1"`
	ExecBase float64
	MaxR     float64 `validate:"gte=0,lte=1"`
	TempDir  string

	Runtime dispatch.Runtime `validate:"required"`
}

// Stats is the aggregate result of a Burnin call, and the value
// published incrementally through a *state.DynamicValue as runs
// complete so a caller can observe progress without blocking on the
// whole loop.
type Stats struct {
	Runs        int
	Failures    int
	FailedPaths []string
}

// Observers bundles the optional hooks a caller can use to watch a
// Burnin call from another goroutine. Either field may be nil.
type Observers struct {
	// Progress receives every intermediate Stats snapshot as runs
	// complete.
	Progress *state.DynamicValue[Stats]

	// InFlight is incremented for the duration of each dispatch.Dispatch
	// call and decremented afterward, the same Increment/Decrement
	// bookkeeping the teacher's combiner pool uses for its own
	// backpressure signal, repurposed here so a monitor goroutine can
	// poll InFlight.IsZero() to tell whether Burnin is between runs or
	// currently waiting on a dispatch.
	InFlight *state.InFlightCounter
}

// Burnin runs cfg.NRuns dispatch attempts, persisting any failing graph
// under cfg.TempDir (defaulting to persist.DefaultTempDir) following the
// source's "<name>_failed_NNNN" naming, and returns the final Stats. obs
// may be nil.
func Burnin(ctx context.Context, cfg BurninConfig, obs *Observers) (*Stats, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, err)
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = persist.DefaultTempDir
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(cfg.NRuns)|1))

	var stats Stats
	pacer := timerp.Get()
	defer timerp.Put(pacer)

	for i := 0; i < cfg.NRuns; i++ {
		if err := ctx.Err(); err != nil {
			return &stats, err
		}

		n := rng.IntN(cfg.MaxTasks) + 1
		m := rng.IntN(n/2+1) + 1
		d := rng.IntN(n) + 1

		telemetry.Logger().Info("burnin: generating graph", zap.Int("run", i), zap.Int("n", n))

		model, err := gen.Generate(gen.Config{N: n, M: m, DepRange: d, ExecBase: cfg.ExecBase, MaxR: cfg.MaxR})
		if err != nil {
			return &stats, fmt.Errorf("%w: run %d: %s", ErrConfig, i, err)
		}

		if obs != nil && obs.InFlight != nil {
			obs.InFlight.Increment()
		}
		_, dispatchErr := dispatch.Dispatch(ctx, model, cfg.Runtime)
		if obs != nil && obs.InFlight != nil {
			obs.InFlight.Decrement()
		}
		stats.Runs++

		if dispatchErr != nil {
			path := filepath.Join(tempDir, fmt.Sprintf("%s_failed_%04d.yaml", cfg.Name, stats.Failures))
			stats.Failures++
			if err := persist.Save(path, model); err != nil {
				telemetry.Logger().Warn("burnin: failed to persist failing graph",
					zap.String("path", path), zap.Error(err))
			} else {
				stats.FailedPaths = append(stats.FailedPaths, path)
			}
			telemetry.Logger().Warn("burnin: run failed", zap.Int("run", i), zap.String("saved_as", path))
		}

		if obs != nil && obs.Progress != nil {
			snapshot := stats
			snapshot.FailedPaths = append([]string(nil), stats.FailedPaths...)
			obs.Progress.Store(snapshot)
		}

		// Between-run checkpoint: races a zero-delay timer against ctx
		// cancellation, the same bounded-wait idiom combinerpool uses for
		// its spawn-delay check, so a cancellation lands between runs
		// rather than only after the whole loop finishes.
		pacer.Reset(0)
		select {
		case <-ctx.Done():
			return &stats, ctx.Err()
		case <-pacer.C:
		}
	}

	return &stats, nil
}
