package graph

// Builder is the mutation surface for a Model: construct-empty,
// append-task, attach a successor edge to an already-appended task
// (AttachSuccessor, used by the Generator), append a low-level trace word
// (AppendLL), freeze. Both the Generator and the Tracer build through a
// Builder rather than mutating a Model's fields directly. Append-task is
// not the only mutator: AttachSuccessor changes a task after it was
// appended, and a frozen Model's fields are exported and not protected
// against writes.
type Builder struct {
	tasks    []Task
	ndeps    int
	nvar     int
	depRange int
	execBase float64
	maxR     float64
	ll       []uint64
}

// NewBuilder starts an empty graph under construction. depRange, execBase,
// and maxR are generation parameters carried through to the resulting
// Model; pass a zero depRange when building a traced (rather than
// generated) graph.
func NewBuilder(depRange int, execBase, maxR float64) *Builder {
	return &Builder{
		depRange: depRange,
		execBase: execBase,
		maxR:     maxR,
	}
}

// NewBuilderFromModel seeds a Builder with an existing Model's tasks and
// counts so that further AppendTask/AttachSuccessor calls continue the
// same id space, used by package trace to resume a session from a
// persisted graph.
func NewBuilderFromModel(m *Model) *Builder {
	b := &Builder{
		depRange: m.DepRange,
		execBase: m.ExecBase,
		maxR:     m.MaxR,
		ndeps:    m.NDeps,
		nvar:     m.NVar,
	}
	b.tasks = make([]Task, len(m.Tasks))
	copy(b.tasks, m.Tasks)
	if len(m.LL) > 0 {
		b.ll = make([]uint64, len(m.LL))
		copy(b.ll, m.LL)
	}
	return b
}

// AppendTask adds a new task with the given predecessor and successor
// edges and load factor, returning its assigned id (always
// len(tasks-so-far), preserving I1 by construction since every edge a
// caller supplies must reference an already-appended task).
func (b *Builder) AppendTask(predecessors, successors []Dependency, exec float64) int {
	id := len(b.tasks)
	b.tasks = append(b.tasks, Task{
		ID:           id,
		Predecessors: predecessors,
		Successors:   successors,
		Exec:         exec,
	})
	for _, d := range predecessors {
		b.noteDep(d)
	}
	for _, d := range successors {
		b.noteDep(d)
	}
	return id
}

func (b *Builder) noteDep(d Dependency) {
	if d.DepID >= b.ndeps {
		b.ndeps = d.DepID + 1
	}
	if d.VarID >= b.nvar {
		b.nvar = d.VarID + 1
	}
}

// AttachSuccessor appends a successor edge to an already-appended task.
// The generator uses this to record a producer's successor edge at the
// point a later task picks it as a predecessor, since the producer task
// itself was appended before that edge's existence was known.
func (b *Builder) AttachSuccessor(taskID int, dep Dependency) {
	b.tasks[taskID].Successors = append(b.tasks[taskID].Successors, dep)
	b.noteDep(dep)
}

// AppendLL appends a low-level trace word, mirroring the source's
// std::vector<uint64_t> ll.
func (b *Builder) AppendLL(word uint64) {
	b.ll = append(b.ll, word)
}

// Model freezes the builder's accumulated state into a Model. The builder
// remains usable afterward; each call returns an independent snapshot.
func (b *Builder) Model() *Model {
	tasks := make([]Task, len(b.tasks))
	copy(tasks, b.tasks)

	var ll []uint64
	if len(b.ll) > 0 {
		ll = make([]uint64, len(b.ll))
		copy(ll, b.ll)
	}

	return &Model{
		Tasks:    tasks,
		NTasks:   len(tasks),
		NDeps:    b.ndeps,
		NVar:     b.nvar,
		DepRange: b.depRange,
		ExecBase: b.execBase,
		MaxR:     b.maxR,
		LL:       ll,
	}
}

// NTasks reports the number of tasks appended so far.
func (b *Builder) NTasks() int {
	return len(b.tasks)
}
