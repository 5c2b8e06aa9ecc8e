// Package graph implements the immutable-after-build task-graph
// representation (GraphModel) that the generator, tracer, and dispatcher
// share: tasks in topological order, the dependency edges between them, and
// the invariants that every producer of a graph is expected to uphold.
package graph

import (
	"fmt"

	"github.com/tasklab/tasklab/internal/cerr"
)

const (
	// ErrEmptyGraph is returned by operations that require at least one
	// task but were given a graph with none.
	ErrEmptyGraph cerr.Error = "graph: empty graph"

	// ErrInvariant is wrapped with a specific message by Validate when an
	// invariant (I1-I4) does not hold.
	ErrInvariant cerr.Error = "graph: invariant violation"
)

// Dependency is one edge of the graph, carried twice: once as a
// predecessor record on the consumer, once as a successor record on the
// producer, sharing DepID and VarID.
type Dependency struct {
	TaskID int  // the other endpoint of this edge; the task itself on a traced graph's self-advertised successor record
	Mode   Mode // access mode declared at this endpoint
	DepID  int  // unique per edge, dense over [0, NDeps)
	VarID  int  // the variable this edge guards, dense over [0, NVar)
}

// Task is one vertex of the graph.
type Task struct {
	ID           int
	Predecessors []Dependency
	Successors   []Dependency
	Exec         float64 // load factor in [-MaxR, +MaxR]
}

// HasSuccessor is an O(deg) membership probe over t's successor edges,
// for callers asserting a specific dep_id was recorded. Validate does not
// call it; its symmetry check indexes successors by dep_id instead.
func (t Task) HasSuccessor(depID int) bool {
	for _, d := range t.Successors {
		if d.DepID == depID {
			return true
		}
	}
	return false
}

// Model is the ordered, frozen representation of a task graph. The zero
// value is an empty model. Construct one with NewBuilder (trace path) or
// via package gen (generation path); persist and restore it with package
// persist.
type Model struct {
	Tasks []Task

	NTasks int
	NDeps  int
	NVar   int

	// Generation parameters. DepRange is only meaningful for generated
	// graphs (I4); traced graphs leave it zero.
	DepRange int
	ExecBase float64
	MaxR     float64

	// LL is the auxiliary low-level event sequence recorded alongside a
	// trace session; nil for generated graphs.
	LL []uint64

	// OutMap and InMap are the persistent per-varptr hazard state needed
	// to resume a trace session (spec §6.2): the last writer and the
	// readers since that write, keyed by VarPtr. Nil for generated
	// graphs; trace.Tracer.Model fills them, and package persist carries
	// them through a save/restore.
	OutMap map[uint64]HazardEndpoint
	InMap  map[uint64][]HazardEndpoint
}

// HazardEndpoint names a single recorded variable access surviving a
// save/restore round trip: the task and dep_id that performed it, and
// the var_id it resolved to.
type HazardEndpoint struct {
	TaskID int
	DepID  int
	VarID  int
}

// TaskByID returns the task with the given id and whether it was found.
func (m *Model) TaskByID(id int) (Task, bool) {
	if id < 0 || id >= len(m.Tasks) {
		return Task{}, false
	}
	return m.Tasks[id], true
}

// Validate checks invariants I1-I4 and returns a wrapped ErrInvariant
// describing the first one found to be violated, or nil if the model is
// well-formed.
func (m *Model) Validate() error {
	if m.NTasks != len(m.Tasks) {
		return fmt.Errorf("%w: NTasks=%d but %d tasks present", ErrInvariant, m.NTasks, len(m.Tasks))
	}

	depSeen := make([]bool, m.NDeps)
	varSeen := make([]bool, m.NVar)

	for i, t := range m.Tasks {
		if t.ID != i {
			return fmt.Errorf("%w: task at index %d has ID %d", ErrInvariant, i, t.ID)
		}

		// I1: acyclicity by construction.
		for _, p := range t.Predecessors {
			if p.TaskID >= i {
				return fmt.Errorf("%w: I1 acyclicity: task %d has predecessor %d", ErrInvariant, i, p.TaskID)
			}
			// I4: locality window, only meaningful for generated graphs.
			if m.DepRange > 0 {
				rangeMin := max(0, i-m.DepRange)
				if p.TaskID < rangeMin {
					return fmt.Errorf("%w: I4 locality: task %d has predecessor %d outside window [%d,%d)", ErrInvariant, i, p.TaskID, rangeMin, i)
				}
			}
		}

		for _, d := range t.Predecessors {
			if err := markDense(depSeen, d.DepID, "dep_id"); err != nil {
				return err
			}
			if err := markDense(varSeen, d.VarID, "var_id"); err != nil {
				return err
			}
		}
		for _, d := range t.Successors {
			if err := markDense(depSeen, d.DepID, "dep_id"); err != nil {
				return err
			}
			if err := markDense(varSeen, d.VarID, "var_id"); err != nil {
				return err
			}
		}
	}

	// I2: predecessor/successor symmetry. Every predecessor edge must have
	// exactly one matching successor edge with the same dep_id and var_id.
	succByDep := make(map[int]Dependency, m.NDeps)
	for _, t := range m.Tasks {
		for _, d := range t.Successors {
			succByDep[d.DepID] = d
		}
	}
	for _, t := range m.Tasks {
		for _, p := range t.Predecessors {
			s, ok := succByDep[p.DepID]
			if !ok {
				return fmt.Errorf("%w: I2 symmetry: predecessor dep_id %d on task %d has no matching successor", ErrInvariant, p.DepID, t.ID)
			}
			if s.VarID != p.VarID {
				return fmt.Errorf("%w: I2 symmetry: dep_id %d var_id mismatch (pred=%d succ=%d)", ErrInvariant, p.DepID, p.VarID, s.VarID)
			}
		}
	}

	// I3: ID density, already enforced per-appearance above; confirm full
	// coverage of the declared ranges.
	for id, seen := range depSeen {
		if !seen {
			return fmt.Errorf("%w: I3 density: dep_id %d never appears", ErrInvariant, id)
		}
	}
	for id, seen := range varSeen {
		if !seen {
			return fmt.Errorf("%w: I3 density: var_id %d never appears", ErrInvariant, id)
		}
	}
	if m.NVar > m.NDeps {
		return fmt.Errorf("%w: I3 density: NVar=%d exceeds NDeps=%d", ErrInvariant, m.NVar, m.NDeps)
	}

	return nil
}

func markDense(seen []bool, id int, label string) error {
	if id < 0 || id >= len(seen) {
		return fmt.Errorf("%w: %s %d out of declared range [0,%d)", ErrInvariant, label, id, len(seen))
	}
	seen[id] = true
	return nil
}
