// Package dispatch implements the Dispatcher: submission of a GraphModel
// to an external runtime via the runtime's own task-submission API,
// followed by a taskwait and a pass/fail report on whether the runtime
// honored every declared dependency (spec §4.4/§4.4.1), grounded on
// original_source/v03/tasklab.cpp's TaskLab::run/microtask/ptask_f/f.
package dispatch

import (
	"context"

	"github.com/tasklab/tasklab/internal/cerr"
)

const (
	// ErrRuntimeBind is returned when the Runtime cannot service a
	// submission (spec §7 RuntimeBindError: "required runtime symbol
	// missing", generalized here to any runtime-side allocation/binding
	// failure since dispatch.Runtime is a Go interface rather than a
	// dynamically-bound symbol table).
	ErrRuntimeBind cerr.Error = "dispatch: runtime bind error"

	// ErrSchedulerViolation is wrapped into the returned Report's error
	// when at least one task observed a false predecessor output.
	ErrSchedulerViolation cerr.Error = "dispatch: scheduler violation"
)

// TaskHandle is an opaque reference to a task allocated by a Runtime,
// echoed back by TaskWithDeps and never interpreted by package dispatch.
type TaskHandle any

// Slot identifies one element of the Dispatcher's var arena. The source
// hands the runtime a raw address as the hazard key; per design note §9
// ("index into the arena... restoring via the same arithmetic"), this
// implementation hands out a stable index instead.
type Slot int

// DepDescriptor is one dependency descriptor of a task submission,
// corresponding to one {base_addr, len, in_flag, out_flag} entry of
// spec §6.1's task_with_deps.
type DepDescriptor struct {
	Slot Slot
	In   bool
	Out  bool
}

// TaskBody is the function a Runtime invokes to run one task's body. The
// Runtime must invoke it exactly once per allocated task handle, passing
// back whatever TaskHandle TaskAlloc produced.
type TaskBody func(ctx context.Context, handle TaskHandle)

// Runtime is the Go-native rendering of the four opaque entry points of
// spec §6.1. A dynamic-symbol loader (out of scope for this repository)
// is responsible for producing a concrete Runtime; package dispatch only
// ever consumes this interface, never a symbol table. See dispatch/simrt
// for two reference implementations used by this package's own tests and
// by the burn-in harness.
type Runtime interface {
	// ForkCall enters a parallel region and invokes microtask once; the
	// Dispatcher's entire submission loop and taskwait happen inside
	// microtask, mirroring fork_call(id, nshared, microtask_ptr, ...).
	ForkCall(ctx context.Context, microtask func(ctx context.Context) error) error

	// TaskAlloc allocates a task descriptor whose body is the given
	// TaskBody, corresponding to task_alloc(...) -> task_handle.
	TaskAlloc(ctx context.Context, id int, body TaskBody) (TaskHandle, error)

	// TaskWithDeps submits handle with its dependency descriptors,
	// corresponding to task_with_deps(id, gtid, handle, ndeps, deparr,
	// nodeps, null).
	TaskWithDeps(ctx context.Context, handle TaskHandle, deps []DepDescriptor) error

	// TaskWait blocks until every task submitted since the enclosing
	// ForkCall's microtask began has completed.
	TaskWait(ctx context.Context) error
}
