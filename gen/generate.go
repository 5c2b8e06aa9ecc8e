// Package gen implements the Generator: randomized synthesis of a
// GraphModel with a configured task count, fan-in, locality window, and
// load profile (spec §4.2), grounded on
// original_source/v03/tasklab.cpp's TaskGraph::create_tasks and
// describe_deps.
package gen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tasklab/tasklab/config"
	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/internal/cerr"
	"github.com/tasklab/tasklab/telemetry"
)

// ErrConfig is returned, wrapped with a specific message, when cfg fails
// validation.
const ErrConfig cerr.Error = "gen: invalid configuration"

// Generate synthesizes a new GraphModel per cfg. It seeds a private PRNG
// from wall time for every call (rand.NewPCG(...) rather than a shared
// global generator) so concurrent Generate calls never share PRNG state,
// preserving the source's "seed from wall time" behavior without the
// source's implicit assumption of a single-threaded caller.
func Generate(cfg Config) (*graph.Model, error) {
	start := time.Now()
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, err)
	}

	now := uint64(time.Now().UnixNano())
	rng := rand.New(rand.NewPCG(now, now>>32|1))

	b := graph.NewBuilder(cfg.DepRange, cfg.ExecBase, cfg.MaxR)
	depID := 0

	if cfg.MaxR == 0 {
		telemetry.Logger().Debug("gen: MaxR is zero, every task's Exec will be zero (open question (c))")
	}

	// Task 0 has no predecessors (spec §4.2 step 3).
	b.AppendTask(nil, nil, pickExec(rng, cfg.MaxR))

	for i := 1; i < cfg.N; i++ {
		curDep := cfg.M
		if i <= cfg.M {
			curDep = i - 1
		}

		rangeMin := max(0, i-cfg.DepRange)
		rangeMax := rangeMin + cfg.DepRange
		if rangeMax > i {
			rangeMax = i
		}

		window := rangeMax - rangeMin
		// Open Question (a): a degenerate window (window == 0) would make
		// the predecessor pick's modulus zero. Config validation requires
		// DepRange >= 1, so for i >= 1 this window is always at least 1;
		// pickDistinctPredecessors' window <= 0 guard is defensive and
		// never reached through the public API. The clamp below is an
		// ordinary step: it applies whenever the window is narrower than
		// curDep.
		if window < curDep {
			curDep = window
		}

		npred := 1
		if curDep > 0 {
			npred = 1 + rng.IntN(curDep)
		}

		preds := pickDistinctPredecessors(rng, npred, rangeMin, rangeMax)

		predecessors := make([]graph.Dependency, 0, len(preds))
		for _, p := range preds {
			mode := graph.In
			if rng.IntN(2) == 1 {
				mode = graph.InOut
			}
			predecessors = append(predecessors, graph.Dependency{
				TaskID: p,
				Mode:   mode,
				DepID:  depID,
				VarID:  depID,
			})
			depID++
		}

		taskID := b.AppendTask(predecessors, nil, pickExec(rng, cfg.MaxR))

		for j, p := range preds {
			successorDepID := predecessors[j].DepID
			appendSuccessor(b, p, taskID, successorDepID, predecessors[j].VarID)
		}
	}

	m := b.Model()
	telemetry.RecordGeneration(context.Background(), time.Since(start))
	return m, m.Validate()
}

func pickExec(rng *rand.Rand, maxR float64) float64 {
	sign := 1.0
	if rng.IntN(2) == 0 {
		sign = -1.0
	}
	return sign * (float64(rng.IntN(100)) / 100) * maxR
}

func pickDistinctPredecessors(rng *rand.Rand, n, rangeMin, rangeMax int) []int {
	window := rangeMax - rangeMin
	if window <= 0 {
		return nil
	}
	chosen := make(map[int]struct{}, n)
	result := make([]int, 0, n)
	for len(result) < n && len(result) < window {
		p := rangeMin + rng.IntN(window)
		if _, ok := chosen[p]; ok {
			continue
		}
		chosen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}

// appendSuccessor attaches the producer-side successor record for a
// predecessor edge just assigned to a consumer task. Since Builder only
// supports appending whole tasks, producers record their successor lists
// as they are discovered; this helper mutates the already-appended
// producer task's slice in place via the builder's task list.
func appendSuccessor(b *graph.Builder, producer, consumer, depID, varID int) {
	b.AttachSuccessor(producer, graph.Dependency{
		TaskID: consumer,
		Mode:   graph.Out,
		DepID:  depID,
		VarID:  varID,
	})
}
