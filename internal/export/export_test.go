package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

func seedStore(t *testing.T) *graph.Store {
	t.Helper()
	store := graph.NewStore("/tmp/proj", zap.NewNop())

	files := []graph.Node{
		{ID: "file:src/engine.ts", Name: "engine.ts", Type: graph.NodeTypeFile, Path: "src/engine.ts", Confidence: 1.0},
		{ID: "file:src/logger.ts", Name: "logger.ts", Type: graph.NodeTypeFile, Path: "src/logger.ts", Confidence: 1.0},
		{ID: "file:src/db.ts", Name: "db.ts", Type: graph.NodeTypeFile, Path: "src/db.ts", Confidence: 1.0},
	}
	for _, n := range files {
		require.NoError(t, store.AddNode(n))
	}
	require.NoError(t, store.AddNode(graph.Node{
		ID: "pattern:core", Name: "Core Module", Type: graph.NodeTypePattern, Confidence: 0.8,
	}))

	edges := []graph.Edge{
		{ID: "e1", Source: "file:src/engine.ts", Target: "file:src/logger.ts", Type: graph.EdgeTypeImports, Weight: 1, Confidence: 0.9},
		{ID: "e2", Source: "pattern:core", Target: "file:src/engine.ts", Type: graph.EdgeTypeRelatesTo, Weight: 1, Confidence: 0.8},
		{ID: "e3", Source: "pattern:core", Target: "file:src/logger.ts", Type: graph.EdgeTypeRelatesTo, Weight: 1, Confidence: 0.8},
	}
	for _, e := range edges {
		require.NoError(t, store.AddEdge(e))
	}
	return store
}

func TestBuildExport(t *testing.T) {
	store := seedStore(t)
	store.SetLastScan(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	out := BuildExport(store)

	assert.Equal(t, "/tmp/proj", out.ProjectRoot)
	assert.Equal(t, "2026-03-01T12:00:00Z", out.LastScan)
	assert.NotEmpty(t, out.ExportedAt)
	assert.Equal(t, 4, out.Stats.NodeCount)
	assert.Equal(t, 3, out.Stats.EdgeCount)

	require.Len(t, out.Nodes, 4)
	for i := 1; i < len(out.Nodes); i++ {
		assert.Less(t, out.Nodes[i-1].ID, out.Nodes[i].ID)
	}
	require.Len(t, out.Edges, 3)
	assert.Equal(t, "e1", out.Edges[0].ID)
}

func TestBuildExport_NoLastScan(t *testing.T) {
	store := seedStore(t)
	out := BuildExport(store)
	assert.Empty(t, out.LastScan)
}

func TestWriteJSON(t *testing.T) {
	store := seedStore(t)

	data, err := WriteJSON(store)
	require.NoError(t, err)

	var decoded GraphExport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Nodes, 4)
	assert.Len(t, decoded.Edges, 3)

	// Indented output for diff-friendliness.
	assert.Contains(t, string(data), "\n  \"nodes\"")
}

func TestGenerateMermaid(t *testing.T) {
	store := seedStore(t)

	out := GenerateMermaid(store)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.Equal(t, "graph TD", lines[0])
	assert.Contains(t, out, `subgraph N0["Core Module"]`)
	assert.Contains(t, out, `["src/engine.ts"]`)
	assert.Contains(t, out, `["src/logger.ts"]`)
	assert.Contains(t, out, "  end\n")

	// One imports edge, one labeled arrow.
	arrowCount := strings.Count(out, "-->|imports|")
	assert.Equal(t, 1, arrowCount)
}

func TestGenerateMermaid_EmptyStore(t *testing.T) {
	store := graph.NewStore("/tmp/proj", zap.NewNop())
	out := GenerateMermaid(store)
	assert.Equal(t, "graph TD\n", out)
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "src/engine.ts", shortPath("src/engine.ts"))
	assert.Equal(t, "scan/parser.go", shortPath("internal/scan/parser.go"))
	assert.Equal(t, "main.go", shortPath("main.go"))
}
