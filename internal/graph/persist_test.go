package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphFile returns a path for the persisted document inside a test dir.
func graphFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mindgraph.json")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:a", Name: "a.ts", Type: NodeTypeFile,
		Path: "src/a.ts", Confidence: 0.85,
		Properties: map[string]any{"language": "typescript"},
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "var:a:count", Name: "count", Type: NodeTypeVariable,
		Path: "src/a.ts", Confidence: 0.4,
		Metadata: map[string]any{
			"variableType": "number",
			"lineNumber":   float64(12),
			"scope":        "local",
		},
	}))
	require.NoError(t, s.AddEdge(Edge{
		ID: "e1", Source: "file:a", Target: "var:a:count",
		Type: EdgeTypeContains, Confidence: 0.9, Weight: 2,
	}))
	s.SetLastScan(time.Now())

	file := graphFile(t)
	s.Save(file)

	loaded := newTestStore(t)
	loaded.Load(file)

	require.Len(t, loaded.nodes, 2)
	require.Len(t, loaded.edges, 1)

	for id, want := range s.nodes {
		got, ok := loaded.nodes[id]
		require.True(t, ok, "node %s missing after round trip", id)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Path, got.Path)
		assert.InDelta(t, want.Confidence, got.Confidence, 0.005, "confidence survives at 2-decimal precision")
		assert.Equal(t, want.LastUpdated.UnixMilli(), got.LastUpdated.UnixMilli(), "millisecond-exact lastUpdated")
		require.NotNil(t, got.CreatedAt)
		assert.Equal(t, want.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
	}

	got := loaded.nodes["var:a:count"]
	assert.Equal(t, "number", got.Metadata["variableType"], "abbreviated metadata keys expand on load")
	assert.Equal(t, "local", got.Metadata["scope"])

	e := loaded.edges["e1"]
	require.NotNil(t, e)
	assert.Equal(t, EdgeTypeContains, e.Type)
	assert.Equal(t, "file:a", e.Source)
	assert.InDelta(t, 0.9, e.Confidence, 0.005)
	assert.InDelta(t, 2.0, e.Weight, 1e-9)

	assert.Equal(t, s.lastScan.UnixMilli(), loaded.lastScan.UnixMilli())
	assert.Equal(t, s.projectRoot, loaded.projectRoot)

	// Indexes are rebuilt, never deserialized.
	checkIndexConsistency(t, loaded)
	results := loaded.FindNodesByPath("a.ts")
	require.NotEmpty(t, results)
}

func TestSave_CompactShape(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:a", Name: "a.ts", Type: NodeTypeFile,
		Path: "src/a.ts", Confidence: 0.857,
		Metadata: map[string]any{"variableType": "x"},
	}))

	data, err := s.marshalGraph()
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	for _, key := range []string{"v", "p", "paths", "n", "e"} {
		assert.Contains(t, top, key)
	}
	assert.NotContains(t, top, "nodes", "writer must emit the compact shape only")

	var doc compactDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.N, 1)
	assert.Equal(t, nodeTypeCodes[NodeTypeFile], doc.N[0].T, "node type is enum-coded")
	assert.InDelta(t, 0.86, doc.N[0].C, 1e-9, "confidence rounds to 2 decimals")
	require.NotNil(t, doc.N[0].P)
	assert.Equal(t, "src/a.ts", doc.Paths[*doc.N[0].P], "paths are dictionary-encoded")
	assert.Contains(t, doc.N[0].D, "vt", "metadata keys are abbreviated")
}

func TestSave_PathDictionaryDeduplicates(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"file:a", "fn:a:one", "fn:a:two"} {
		require.NoError(t, s.AddNode(Node{
			ID: id, Name: id, Type: NodeTypeFunction,
			Path: "src/a.ts", Confidence: 0.5,
		}))
	}

	doc := s.encodeCompact()
	assert.Equal(t, []string{"src/a.ts"}, doc.Paths)
}

func TestLoad_LegacyFormat(t *testing.T) {
	legacy := `{
		"projectRoot": "/repo",
		"version": 1,
		"lastScan": "2024-03-01T10:00:00.000Z",
		"nodes": [
			["file:a", {
				"id": "file:a",
				"name": "a.ts",
				"type": "file",
				"path": "/repo/src/a.ts",
				"metadata": {},
				"properties": {"language": "typescript"},
				"confidence": 0.85,
				"lastUpdated": "2024-03-01T09:59:00.000Z"
			}],
			["fn:a:run", {
				"id": "fn:a:run",
				"name": "run",
				"type": "function",
				"path": "/repo/src/a.ts",
				"confidence": 0.7
			}]
		],
		"edges": [
			["e1", {
				"id": "e1",
				"source": "file:a",
				"target": "fn:a:run",
				"type": "contains",
				"confidence": 0.9,
				"lastUpdated": "2024-03-01T09:59:00.000Z"
			}]
		]
	}`

	s := newTestStore(t)
	require.NoError(t, s.unmarshalGraph([]byte(legacy)))

	require.Len(t, s.nodes, 2)
	require.Len(t, s.edges, 1)

	a := s.nodes["file:a"]
	require.NotNil(t, a)
	assert.Equal(t, NodeTypeFile, a.Type)
	assert.Equal(t, "src/a.ts", a.Path, "legacy absolute paths relativize under projectRoot")
	assert.Equal(t, int64(1709287140000), a.LastUpdated.UnixMilli())

	// Missing lastUpdated defaults to now.
	fn := s.nodes["fn:a:run"]
	require.NotNil(t, fn)
	assert.WithinDuration(t, time.Now(), fn.LastUpdated, time.Minute)

	assert.Equal(t, "/repo", s.projectRoot)
	assert.False(t, s.lastScan.IsZero())
	checkIndexConsistency(t, s)
}

func TestLoad_LegacyMatchesCompactEncoding(t *testing.T) {
	// The same logical graph through both readers must be identical.
	legacy := `{
		"projectRoot": "/repo",
		"nodes": [["n1", {"id": "n1", "name": "thing", "type": "document",
			"confidence": 0.5, "lastUpdated": "2024-03-01T10:00:00.000Z"}]],
		"edges": []
	}`

	fromLegacy := newTestStore(t)
	require.NoError(t, fromLegacy.unmarshalGraph([]byte(legacy)))

	data, err := fromLegacy.marshalGraph()
	require.NoError(t, err)
	fromCompact := newTestStore(t)
	require.NoError(t, fromCompact.unmarshalGraph(data))

	require.Len(t, fromCompact.nodes, 1)
	want, got := fromLegacy.nodes["n1"], fromCompact.nodes["n1"]
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Type, got.Type)
	assert.InDelta(t, want.Confidence, got.Confidence, 0.005)
	assert.Equal(t, want.LastUpdated.UnixMilli(), got.LastUpdated.UnixMilli())
}

func TestLoad_MissingFileIsFreshStart(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a", "a.go")))

	s.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))

	// A missing file is a normal first run: existing state is untouched.
	assert.Len(t, s.nodes, 1)
}

func TestLoad_CorruptFileResetsToEmpty(t *testing.T) {
	file := graphFile(t)
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))

	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a", "a.go")))
	s.Load(file)

	assert.Empty(t, s.nodes, "corrupt document resets to an empty graph")
	assert.Empty(t, s.edges)
}

func TestLoad_UnrecognizedShapeResets(t *testing.T) {
	file := graphFile(t)
	require.NoError(t, os.WriteFile(file, []byte(`{"something": "else"}`), 0o644))

	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a", "a.go")))
	s.Load(file)

	assert.Empty(t, s.nodes)
}

func TestLoad_DropsDanglingEdges(t *testing.T) {
	legacy := `{
		"projectRoot": "/repo",
		"nodes": [["n1", {"id": "n1", "name": "thing", "type": "document", "confidence": 0.5}]],
		"edges": [["e1", {"id": "e1", "source": "n1", "target": "ghost",
			"type": "relates_to", "confidence": 0.5}]]
	}`

	s := newTestStore(t)
	require.NoError(t, s.unmarshalGraph([]byte(legacy)))
	assert.Empty(t, s.edges, "edges to missing nodes are dropped after bulk load")
}

func TestSave_FailureLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a", "a.go")))

	// Saving into a directory path fails; the store must stay intact and
	// must not panic.
	dir := t.TempDir()
	s.Save(dir)

	assert.Len(t, s.nodes, 1)
}
