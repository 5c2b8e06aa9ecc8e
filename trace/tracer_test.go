package trace_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/trace"
	"pgregory.net/rapid"
)

const addrA trace.VarPtr = 0xA000

func TestScenario3WARChain(t *testing.T) {
	// submit T0 OUT A; T1 IN A; T2 OUT A.
	tr := trace.NewTracer(1000, 0.25)
	ctx := context.Background()

	t0, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.Out}})
	require.NoError(t, err)
	require.Equal(t, 0, t0)

	t1, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.In}})
	require.NoError(t, err)
	require.Equal(t, 1, t1)

	t2, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.Out}})
	require.NoError(t, err)
	require.Equal(t, 2, t2)

	m := tr.Model()
	require.NoError(t, m.Validate())

	require.Len(t, m.Tasks[0].Successors, 1)
	varID := m.Tasks[0].Successors[0].VarID

	require.Len(t, m.Tasks[1].Predecessors, 1)
	require.Equal(t, 0, m.Tasks[1].Predecessors[0].TaskID)
	require.Equal(t, varID, m.Tasks[1].Predecessors[0].VarID)
	require.Len(t, m.Tasks[1].Successors, 1)
	require.Equal(t, varID, m.Tasks[1].Successors[0].VarID)

	// T2's predecessor is T1 (WAR), not T0.
	require.Len(t, m.Tasks[2].Predecessors, 1)
	require.Equal(t, 1, m.Tasks[2].Predecessors[0].TaskID)
	require.Equal(t, varID, m.Tasks[2].Predecessors[0].VarID)
}

func TestScenario4MultipleReadersConvergeOnNextWriter(t *testing.T) {
	// T0 writes A, T1 reads A, T2 reads A, T3 writes A.
	tr := trace.NewTracer(1000, 0.25)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mode := graph.In
		if i == 0 || i == 3 {
			mode = graph.Out
		}
		id, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: mode}})
		require.NoError(t, err)
		require.Equal(t, i, id)
	}

	m := tr.Model()
	require.NoError(t, m.Validate())

	require.Len(t, m.Tasks[1].Predecessors, 1)
	require.Equal(t, 0, m.Tasks[1].Predecessors[0].TaskID)
	require.Len(t, m.Tasks[2].Predecessors, 1)
	require.Equal(t, 0, m.Tasks[2].Predecessors[0].TaskID)

	// T3 depends on both T1 and T2, not T0 (P6: var_id flow is preserved
	// through the readers, not skipped back to the original writer).
	require.Len(t, m.Tasks[3].Predecessors, 2)
	got := []int{m.Tasks[3].Predecessors[0].TaskID, m.Tasks[3].Predecessors[1].TaskID}
	require.ElementsMatch(t, []int{1, 2}, got)
}

func TestAddTaskMultipleRecordsPerTask(t *testing.T) {
	tr := trace.NewTracer(1000, 0.25)
	ctx := context.Background()

	const addrB trace.VarPtr = 0xB000

	_, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.Out}, {VarPtr: addrB, Mode: graph.Out}})
	require.NoError(t, err)

	id, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.In}, {VarPtr: addrB, Mode: graph.In}})
	require.NoError(t, err)

	m := tr.Model()
	require.NoError(t, m.Validate())
	require.Len(t, m.Tasks[id].Predecessors, 2)
}

func TestResetClearsHazardStateButKeepsGraph(t *testing.T) {
	tr := trace.NewTracer(1000, 0.25)
	ctx := context.Background()

	_, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.Out}})
	require.NoError(t, err)

	tr.Reset()

	// After Reset, the same address is treated as never-before-seen: the
	// next writer gets no predecessor and a fresh var_id.
	id, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.Out}})
	require.NoError(t, err)

	m := tr.Model()
	require.Equal(t, 2, m.NTasks)
	require.Empty(t, m.Tasks[id].Predecessors)
}

func TestAddTaskRespectsCanceledContext(t *testing.T) {
	tr := trace.NewTracer(1000, 0.25)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.AddTask(ctx, []trace.Record{{VarPtr: addrA, Mode: graph.In}})
	require.Error(t, err)
}

// TestTraceProperties checks P2 (predecessor/successor symmetry, already
// enforced structurally by graph.Model.Validate) and P6 (var-id flow: a
// reader's edge always carries the most recent writer's var_id) across
// randomly generated submission streams over a small pool of addresses,
// the way the teacher's internal/sim used rapid to generate simulated
// plans.
func TestTraceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := trace.NewTracer(1000, 0.25)
		ctx := context.Background()

		addrs := []uint64{0xA000, 0xB000, 0xC000, 0xD000}
		ntasks := rapid.IntRange(1, 30).Draw(t, "ntasks")

		lastWriterVarID := make(map[uint64]int)
		sawWriter := make(map[uint64]bool)

		for i := 0; i < ntasks; i++ {
			nrecs := rapid.IntRange(1, 3).Draw(t, "nrecs")
			records := make([]trace.Record, nrecs)
			for j := 0; j < nrecs; j++ {
				addr := addrs[rapid.IntRange(0, len(addrs)-1).Draw(t, "addr_idx")]
				mode := graph.Out
				if rapid.Bool().Draw(t, "is_reader") {
					mode = graph.In
				}
				records[j] = trace.Record{VarPtr: addr, Mode: mode}
			}

			id, err := tr.AddTask(ctx, records)
			require.NoError(t, err)

			m := tr.Model()
			require.NoError(t, m.Validate()) // P2 holds for every intermediate snapshot.

			task := m.Tasks[id]
			for k, rec := range records {
				edge := task.Successors[k]
				if rec.Mode == graph.In {
					// P6: a reader's edge var_id matches the last writer's,
					// if one has occurred on this address.
					if sawWriter[rec.VarPtr] {
						require.Equal(t, lastWriterVarID[rec.VarPtr], edge.VarID)
					}
				} else {
					lastWriterVarID[rec.VarPtr] = edge.VarID
					sawWriter[rec.VarPtr] = true
				}
			}
		}
	})
}
