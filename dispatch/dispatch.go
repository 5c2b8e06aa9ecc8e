package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/telemetry"
	"go.uber.org/zap"
)

// TaskParam is the per-task parameter block the Dispatcher allocates for
// every task (spec §4.4 step 2). Per design note §9's re-architecture,
// nothing the task body needs lives in process-wide statics (the source's
// tg_t/r_error): the body is a closure over this block and the run's
// dispatchContext. The Runtime is expected to echo the TaskHandle it
// produced from this block's enclosing TaskAlloc call back into the
// TaskBody it invokes; the body does not use it to find this block.
type TaskParam struct {
	TaskID int
	Exec   float64

	predDepIDs []int
	succDepIDs []int
}

// Report is returned by Dispatch: the set of task ids whose body observed
// a false predecessor output.
type Report struct {
	Violations []int
}

// Failed reports whether the dispatched run should be considered a
// failure (spec §4.4 step 6: success iff no task body flagged a
// failure).
func (r *Report) Failed() bool {
	return len(r.Violations) > 0
}

// dispatchContext bundles everything the per-task verifier (§4.4.1) needs
// for the duration of one Dispatch call. Every task body closure captures
// it, together with that task's TaskParam, rather than reading a
// package-level variable.
type dispatchContext struct {
	model  *graph.Model
	depOK  []atomic.Bool
	params []TaskParam

	mu         sync.Mutex
	violations []int
}

func (dc *dispatchContext) recordViolation(taskID int) {
	dc.mu.Lock()
	dc.violations = append(dc.violations, taskID)
	dc.mu.Unlock()
}

// Dispatch submits model to rt in task-id order, blocks on rt.TaskWait,
// and returns a Report naming any task ids that observed a false
// predecessor (spec §4.4). The depOK, varSlots (here: the Slot space
// handed to the Runtime), and TaskParam arenas are owned exclusively by
// this call for its duration and released on every exit path.
func Dispatch(ctx context.Context, model *graph.Model, rt Runtime) (*Report, error) {
	if model.NTasks == 0 {
		return nil, graph.ErrEmptyGraph
	}

	ctx, span := telemetry.StartDispatchSpan(ctx, model.NTasks)
	defer span.End()

	dc := &dispatchContext{
		model:  model,
		depOK:  make([]atomic.Bool, model.NDeps),
		params: make([]TaskParam, model.NTasks),
	}

	err := rt.ForkCall(ctx, func(ctx context.Context) error {
		for i, task := range model.Tasks {
			p := &dc.params[i]
			p.TaskID = task.ID
			p.Exec = task.Exec
			for _, d := range task.Predecessors {
				p.predDepIDs = append(p.predDepIDs, d.DepID)
			}
			for _, d := range task.Successors {
				p.succDepIDs = append(p.succDepIDs, d.DepID)
			}

			body := func(ctx context.Context, handle TaskHandle) {
				runVerifier(ctx, dc, p, model.ExecBase)
			}

			handle, err := rt.TaskAlloc(ctx, task.ID, body)
			if err != nil {
				return fmt.Errorf("%w: task %d: %s", ErrRuntimeBind, task.ID, err)
			}

			deps := make([]DepDescriptor, 0, len(task.Successors))
			for _, d := range task.Successors {
				deps = append(deps, DepDescriptor{
					Slot: Slot(d.VarID),
					In:   d.Mode != graph.Out,
					Out:  d.Mode != graph.In,
				})
			}

			if err := rt.TaskWithDeps(ctx, handle, deps); err != nil {
				return fmt.Errorf("%w: task %d: %s", ErrRuntimeBind, task.ID, err)
			}
		}

		return rt.TaskWait(ctx)
	})
	if err != nil {
		return nil, err
	}

	sort.Ints(dc.violations)
	telemetry.RecordDispatch(ctx, model.NTasks, len(dc.violations))

	report := &Report{Violations: dc.violations}
	if report.Failed() {
		telemetry.Logger().Warn("dispatch: scheduler violation detected",
			zap.Ints("violations", report.Violations))
		return report, fmt.Errorf("%w: tasks %v", ErrSchedulerViolation, report.Violations)
	}
	return report, nil
}

// runVerifier implements the per-task verifier of spec §4.4.1: a CPU-burn
// of (exec * execBase) + execBase iterations, then the conjunction check
// and dep_ok propagation.
func runVerifier(ctx context.Context, dc *dispatchContext, p *TaskParam, execBase float64) {
	burn(int((p.Exec * execBase) + execBase))

	cur := true
	for _, d := range p.predDepIDs {
		if !dc.depOK[d].Load() {
			cur = false
		}
	}
	if !cur {
		dc.recordViolation(p.TaskID)
	}
	for _, d := range p.succDepIDs {
		dc.depOK[d].Store(cur)
	}
}

// burn spends n iterations of CPU time without doing real work, standing
// in for the source's opaque task body.
func burn(n int) {
	acc := 0
	for i := 0; i < n; i++ {
		acc += i
	}
	_ = acc
}
