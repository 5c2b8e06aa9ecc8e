// Package simrt provides two dispatch.Runtime implementations used by
// package dispatch's own tests, the burn-in harness, and anyone
// exercising the Dispatcher without a real task-parallel runtime to bind
// against.
//
// Both are discrete-event simulations: rather than running task bodies on
// real goroutines, they decide a single deterministic execution order for
// a submitted graph and run each body synchronously in that order. The
// event-queue shape (a min-heap of (priority, taskID) events, drained by
// TaskWait) is grounded on the teacher's internal/sim/estimate.go
// event-loop, repurposed here from estimating a psg-go job tree's
// duration to executing a dependency graph's task bodies in a chosen
// order.
package simrt

import (
	"cmp"
	"context"
	"math/rand/v2"
	"time"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"
	"github.com/tasklab/tasklab/dispatch"
)

// taskDef is the bookkeeping simrt keeps per submitted task, independent
// of dispatch's own TaskParam (a real runtime would not share that
// state with the thing validating it).
type taskDef struct {
	id   int
	body dispatch.TaskBody
	deps []dispatch.DepDescriptor
}

// event is one entry of the discrete-event queue: run task Task at
// priority Order (lower runs first).
type event struct {
	Order int
	Task  *taskDef
}

func (e *event) Cmp(o *event) int {
	return cmp.Compare(e.Order, o.Order)
}

// Runtime is a dispatch.Runtime backed by an in-process discrete-event
// simulation. The zero value is not ready for use; construct one with
// Compliant or Violating.
type Runtime struct {
	violating bool
	rng       *rand.Rand

	tasks []*taskDef
	ready deque.Deque[*taskDef]

	// hazard bookkeeping, independent of package trace's: the runtime's
	// own view of which task last wrote or read each slot, used only to
	// find a candidate edge to violate.
	lastWriter map[dispatch.Slot]int
	readers    map[dispatch.Slot][]int
	dependents map[int]map[int]struct{} // producer task id -> set of dependent task ids
}

// Compliant returns a Runtime that always honors every dependency it was
// given: every task body runs only after every task it depends on (by
// declared slot access) has already run.
func Compliant() *Runtime {
	return &Runtime{
		lastWriter: make(map[dispatch.Slot]int),
		readers:    make(map[dispatch.Slot][]int),
		dependents: make(map[int]map[int]struct{}),
	}
}

// Violating returns a Runtime that deliberately defers exactly one task
// with at least one dependent until after all of its dependents have
// already run, for exercising P8/scenario 5's scheduler-violation
// detection path.
func Violating() *Runtime {
	return &Runtime{
		violating:  true,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		lastWriter: make(map[dispatch.Slot]int),
		readers:    make(map[dispatch.Slot][]int),
		dependents: make(map[int]map[int]struct{}),
	}
}

// ForkCall runs microtask synchronously; the discrete-event simulation
// this package implements has no actual parallel region to enter. Each
// call starts from empty task and hazard bookkeeping, so a Runtime can be
// reused across Dispatch calls.
func (r *Runtime) ForkCall(ctx context.Context, microtask func(context.Context) error) error {
	r.tasks = nil
	for r.ready.Len() > 0 {
		r.ready.PopFront()
	}
	r.lastWriter = make(map[dispatch.Slot]int)
	r.readers = make(map[dispatch.Slot][]int)
	r.dependents = make(map[int]map[int]struct{})
	return microtask(ctx)
}

// TaskAlloc records a new task definition and returns its id as the
// TaskHandle.
func (r *Runtime) TaskAlloc(ctx context.Context, id int, body dispatch.TaskBody) (dispatch.TaskHandle, error) {
	td := &taskDef{id: id, body: body}
	r.tasks = append(r.tasks, td)
	return id, nil
}

// TaskWithDeps records handle's dependency descriptors and updates the
// runtime's own hazard bookkeeping (which task last wrote or is reading
// each slot), exactly the computation a real task-parallel runtime must
// perform itself to decide legal execution order.
func (r *Runtime) TaskWithDeps(ctx context.Context, handle dispatch.TaskHandle, deps []dispatch.DepDescriptor) error {
	id := handle.(int)
	td := r.tasks[id]
	td.deps = deps

	for _, d := range deps {
		if w, ok := r.lastWriter[d.Slot]; ok && w != id {
			r.addDependent(w, id)
		}
		for _, reader := range r.readers[d.Slot] {
			if reader != id {
				r.addDependent(reader, id)
			}
		}

		if d.Out {
			r.lastWriter[d.Slot] = id
			r.readers[d.Slot] = nil
		} else if d.In {
			r.readers[d.Slot] = append(r.readers[d.Slot], id)
		}
	}

	r.ready.PushBack(td)
	return nil
}

func (r *Runtime) addDependent(producer, consumer int) {
	set, ok := r.dependents[producer]
	if !ok {
		set = make(map[int]struct{})
		r.dependents[producer] = set
	}
	set[consumer] = struct{}{}
}

// TaskWait drains the submitted tasks in an order that either honors
// every dependency (Compliant) or deliberately violates exactly one
// producer's relationship with its dependents (Violating), then runs
// each task body in that order.
func (r *Runtime) TaskWait(ctx context.Context) error {
	var h heap.Heap[event, heap.Min]

	victim := -1
	if r.violating {
		victim = r.pickViolationVictim()
	}

	for i := 0; r.ready.Len() > 0; i++ {
		td := r.ready.PopFront()
		order := i
		if td.id == victim {
			order = len(r.tasks) // sorts dead last, after every dependent.
		}
		heap.PushOrderable(&h, event{Order: order, Task: td})
	}

	for {
		ev, ok := heap.PopOrderable(&h)
		if !ok {
			break
		}
		ev.Task.body(ctx, ev.Task.id)
	}
	return nil
}

// pickViolationVictim chooses uniformly among tasks with at least one
// recorded dependent.
func (r *Runtime) pickViolationVictim() int {
	candidates := make([]int, 0, len(r.dependents))
	for producer, deps := range r.dependents {
		if len(deps) > 0 {
			candidates = append(candidates, producer)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[r.rng.IntN(len(candidates))]
}
