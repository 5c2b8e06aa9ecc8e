package persist_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklab/tasklab/gen"
	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/persist"
	"github.com/tasklab/tasklab/trace"
	"pgregory.net/rapid"
)

func TestSaveLoadRoundTripsAGeneratedGraph(t *testing.T) {
	m, err := gen.Generate(gen.Config{N: 8, M: 3, DepRange: 4, ExecBase: 1000, MaxR: 0.25})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, persist.Save(path, m))

	got, err := persist.Load(path)
	require.NoError(t, err)

	assert.Equal(t, m, got)
}

func TestSaveLoadRoundTripsHazardMaps(t *testing.T) {
	ctx := context.Background()
	tr := trace.NewTracer(1000, 0.25)
	_, err := tr.AddTask(ctx, []trace.Record{{VarPtr: 0xA, Mode: graph.Out}})
	require.NoError(t, err)
	_, err = tr.AddTask(ctx, []trace.Record{{VarPtr: 0xA, Mode: graph.In}})
	require.NoError(t, err)

	m := tr.Model()
	require.NotEmpty(t, m.OutMap)

	path := filepath.Join(t.TempDir(), "traced.yaml")
	require.NoError(t, persist.Save(path, m))

	got, err := persist.Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.OutMap, got.OutMap)
	assert.Equal(t, m.InMap, got.InMap)

	resumed := trace.Resume(got)
	id, err := resumed.AddTask(ctx, []trace.Record{{VarPtr: 0xA, Mode: graph.In}})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 2\nntasks: 0\n"), 0o644))

	_, err := persist.Load(path)
	require.ErrorIs(t, err, persist.ErrIO)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := persist.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.ErrorIs(t, err, persist.ErrIO)
}

// P4: save/load round-trips any generated graph losslessly.
func TestRoundTripProperty(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		m := rapid.IntRange(0, n).Draw(rt, "m")
		depRange := rapid.IntRange(1, 10).Draw(rt, "depRange")

		model, err := gen.Generate(gen.Config{N: n, M: m, DepRange: depRange, ExecBase: 1000, MaxR: 0.25})
		require.NoError(rt, err)

		path := filepath.Join(dir, "model.yaml")
		require.NoError(rt, persist.Save(path, model))

		got, err := persist.Load(path)
		require.NoError(rt, err)
		assert.Equal(rt, model, got)
	})
}
