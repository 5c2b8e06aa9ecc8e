// Package trace implements the Tracer: the online hazard-tracking state
// machine that converts a linear stream of task submissions carrying
// per-dependency memory addresses and access modes into a GraphModel whose
// edges reproduce the RAW/WAR/WAW hazard structure of the trace (spec
// §4.3), grounded directly on
// original_source/v03/tasklab.cpp's TaskGraph::add_task.
package trace

import (
	"context"

	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/telemetry"
	"go.uber.org/zap"
)

// VarPtr is the opaque 64-bit address a producer supplies to identify a
// variable. The Tracer never dereferences it; it exists purely as a
// hazard-tracking key, and callers must tolerate address reuse across
// unrelated sessions by calling Reset between them (design note §9).
type VarPtr = uint64

// Record is one dependency descriptor within a single submitted task.
type Record struct {
	VarPtr VarPtr
	Mode   graph.Mode
}

// endpoint names a single recorded access for bookkeeping purposes: the
// task and dep_id that performed it, and the var_id it resolved to.
type endpoint struct {
	taskID int
	depID  int
	varID  int
}

// Tracer holds the persistent per-varptr hazard state across an ingest
// session and accumulates the resulting graph into an internal Builder.
type Tracer struct {
	lastWriter            map[VarPtr]endpoint
	readersSinceLastWrite map[VarPtr][]endpoint
	builder               *graph.Builder
	nextDepID             int
	nextVarID             int
}

// NewTracer starts an empty trace session. execBase and maxR are carried
// into the resulting Model's generation parameters purely for
// informational/reporting purposes; a traced graph has no locality window
// (DepRange is left zero).
func NewTracer(execBase, maxR float64) *Tracer {
	return &Tracer{
		lastWriter:            make(map[VarPtr]endpoint),
		readersSinceLastWrite: make(map[VarPtr][]endpoint),
		builder:               graph.NewBuilder(0, execBase, maxR),
	}
}

// AddTask ingests one task submission's dependency records in order and
// appends the resulting task to the traced graph, returning its assigned
// id. Traced tasks always get Exec == 0 (original_source/v03's add_task
// sets f_t.exec = 0 "for now, set as default"; only the Generator
// produces a nonzero load factor).
func (t *Tracer) AddTask(ctx context.Context, records []Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	taskID := t.builder.NTasks()

	predecessors := make([]graph.Dependency, 0, len(records))
	successors := make([]graph.Dependency, 0, len(records))

	for _, rec := range records {
		depID := t.nextDepID
		t.nextDepID++

		var varID int
		var preds []endpoint

		if rec.Mode.IsWriter() {
			preds, varID = t.processWrite(rec.VarPtr, taskID, depID)
		} else {
			preds, varID = t.processRead(rec.VarPtr, taskID, depID)
		}

		for _, p := range preds {
			// An earlier record of this same task on the same address is
			// not a predecessor: a task never depends on itself (I1).
			if p.taskID == taskID {
				continue
			}
			predecessors = append(predecessors, graph.Dependency{
				TaskID: p.taskID,
				Mode:   rec.Mode,
				DepID:  p.depID,
				VarID:  p.varID,
			})
		}

		// Every record contributes a self-advertised successor edge
		// carrying the same var_id and incoming mode (spec §4.3): the
		// runtime-visible "I touch this variable" set.
		successors = append(successors, graph.Dependency{
			TaskID: taskID,
			Mode:   rec.Mode,
			DepID:  depID,
			VarID:  varID,
		})
	}

	id := t.builder.AppendTask(predecessors, successors, 0)
	telemetry.Logger().Debug("trace: appended task",
		zap.Int("task_id", id), zap.Int("ndeps", len(records)),
	)
	return id, nil
}

// processWrite implements the Writer row of spec §4.3's processing table.
func (t *Tracer) processWrite(ptr VarPtr, taskID, depID int) ([]endpoint, int) {
	readers := t.readersSinceLastWrite[ptr]
	lw, hadWriter := t.lastWriter[ptr]

	var preds []endpoint
	var varID int

	switch {
	case len(readers) > 0:
		preds = readers
		varID = readers[0].varID
	case hadWriter:
		preds = []endpoint{lw}
		varID = lw.varID
	default:
		preds = nil
		varID = t.allocVarID()
	}

	t.lastWriter[ptr] = endpoint{taskID: taskID, depID: depID, varID: varID}
	delete(t.readersSinceLastWrite, ptr)

	return preds, varID
}

// processRead implements the Reader row of spec §4.3's processing table.
func (t *Tracer) processRead(ptr VarPtr, taskID, depID int) ([]endpoint, int) {
	lw, hadWriter := t.lastWriter[ptr]

	var preds []endpoint
	var varID int

	if hadWriter {
		preds = []endpoint{lw}
		varID = lw.varID
	} else {
		preds = nil
		varID = t.allocVarID()
	}

	t.readersSinceLastWrite[ptr] = append(t.readersSinceLastWrite[ptr], endpoint{
		taskID: taskID, depID: depID, varID: varID,
	})

	return preds, varID
}

func (t *Tracer) allocVarID() int {
	id := t.nextVarID
	t.nextVarID++
	return id
}

// Model freezes and returns the graph accumulated so far, including the
// current hazard state (OutMap/InMap) needed to resume the session later
// via Resume. The Tracer remains usable for further AddTask calls
// afterward.
func (t *Tracer) Model() *graph.Model {
	m := t.builder.Model()

	outMap := make(map[VarPtr]graph.HazardEndpoint, len(t.lastWriter))
	for ptr, ep := range t.lastWriter {
		outMap[ptr] = graph.HazardEndpoint{TaskID: ep.taskID, DepID: ep.depID, VarID: ep.varID}
	}
	if len(outMap) > 0 {
		m.OutMap = outMap
	}

	inMap := make(map[VarPtr][]graph.HazardEndpoint, len(t.readersSinceLastWrite))
	for ptr, eps := range t.readersSinceLastWrite {
		list := make([]graph.HazardEndpoint, len(eps))
		for i, ep := range eps {
			list[i] = graph.HazardEndpoint{TaskID: ep.taskID, DepID: ep.depID, VarID: ep.varID}
		}
		inMap[ptr] = list
	}
	if len(inMap) > 0 {
		m.InMap = inMap
	}

	return m
}

// Resume reconstructs a Tracer from a previously saved Model, restoring
// its hazard state (m.OutMap/m.InMap) and continuing the dep_id/var_id
// counters from the highest ids already present, so that further AddTask
// calls extend the same graph and hazard session rather than starting a
// fresh one (spec §6.2: "persistent hazard maps ... needed to resume
// tracing").
func Resume(m *graph.Model) *Tracer {
	t := &Tracer{
		lastWriter:            make(map[VarPtr]endpoint),
		readersSinceLastWrite: make(map[VarPtr][]endpoint),
		builder:               graph.NewBuilderFromModel(m),
		nextDepID:             m.NDeps,
		nextVarID:             m.NVar,
	}

	for ptr, he := range m.OutMap {
		t.lastWriter[ptr] = endpoint{taskID: he.TaskID, depID: he.DepID, varID: he.VarID}
	}
	for ptr, hes := range m.InMap {
		eps := make([]endpoint, len(hes))
		for i, he := range hes {
			eps[i] = endpoint{taskID: he.TaskID, depID: he.DepID, varID: he.VarID}
		}
		t.readersSinceLastWrite[ptr] = eps
	}

	return t
}

// Reset clears all per-varptr hazard state between sessions (design note
// §9: "the core must tolerate reused addresses across unrelated runs"),
// but keeps the graph accumulated so far. Start a new Tracer instead if a
// fresh graph is also wanted.
func (t *Tracer) Reset() {
	t.lastWriter = make(map[VarPtr]endpoint)
	t.readersSinceLastWrite = make(map[VarPtr][]endpoint)
}
