package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestStore creates a Store logging through the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore("/repo", zaptest.NewLogger(t))
}

// fileNode builds a minimal valid file node for tests.
func fileNode(id, path string) Node {
	return Node{
		ID:         id,
		Name:       path[strings.LastIndex(path, "/")+1:],
		Type:       NodeTypeFile,
		Path:       path,
		Confidence: 0.8,
	}
}

// checkIndexConsistency asserts the central invariant: every id in any index
// references a live node, and every live node appears in every index
// applicable to its fields.
func checkIndexConsistency(t *testing.T, s *Store) {
	t.Helper()

	assertLive := func(id, where string) {
		_, ok := s.nodes[id]
		assert.True(t, ok, "index %s references missing node %s", where, id)
	}

	for _, set := range s.structural.byType {
		for id := range set {
			assertLive(id, "byType")
		}
	}
	for _, id := range s.structural.byPath {
		assertLive(id, "byPath")
	}
	for _, set := range s.structural.byName {
		for id := range set {
			assertLive(id, "byName")
		}
	}
	for _, set := range s.structural.byConfidence {
		for id := range set {
			assertLive(id, "byConfidence")
		}
	}
	for _, m := range []map[string]map[string]struct{}{
		s.composite.namePathTerms,
		s.composite.typeNameTerms,
		s.composite.typePathTerms,
		s.composite.semanticTerms,
		s.composite.normalizedPaths,
		s.composite.pathVariants,
		s.composite.termCombinations,
	} {
		for key, set := range m {
			for id := range set {
				assertLive(id, "composite["+key+"]")
			}
		}
	}

	for _, n := range s.nodes {
		_, ok := s.structural.byType[n.Type][n.ID]
		assert.True(t, ok, "node %s missing from byType", n.ID)
		if n.Path != "" {
			assert.Equal(t, n.ID, s.structural.byPath[n.Path], "node %s missing from byPath", n.ID)
		}
		_, ok = s.structural.byName[strings.ToLower(n.Name)][n.ID]
		assert.True(t, ok, "node %s missing from byName", n.ID)
		_, ok = s.structural.byConfidence[confidenceBucket(n.Confidence)][n.ID]
		assert.True(t, ok, "node %s missing from byConfidence", n.ID)
		for _, tok := range tokenize(n.Name, n.Path) {
			_, ok = s.composite.namePathTerms[tok][n.ID]
			assert.True(t, ok, "node %s missing from namePathTerms[%s]", n.ID, tok)
		}
	}

	for _, e := range s.edges {
		_, ok := s.nodes[e.Source]
		assert.True(t, ok, "edge %s has dangling source %s", e.ID, e.Source)
		_, ok = s.nodes[e.Target]
		assert.True(t, ok, "edge %s has dangling target %s", e.ID, e.Target)
		_, ok = s.edgesBySource[e.Source][e.ID]
		assert.True(t, ok, "edge %s missing from source adjacency", e.ID)
		_, ok = s.edgesByTarget[e.Target][e.ID]
		assert.True(t, ok, "edge %s missing from target adjacency", e.ID)
	}
}

func TestAddNode_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		node    Node
		wantErr bool
	}{
		{
			name:    "valid",
			node:    Node{ID: "file:a.ts", Name: "a.ts", Type: NodeTypeFile, Confidence: 0.5},
			wantErr: false,
		},
		{
			name:    "empty id",
			node:    Node{Name: "a.ts", Type: NodeTypeFile, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "id too long",
			node:    Node{ID: strings.Repeat("x", 501), Name: "a", Type: NodeTypeFile, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "empty name",
			node:    Node{ID: "n1", Type: NodeTypeFile, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "name too long",
			node:    Node{ID: "n2", Name: strings.Repeat("x", 1001), Type: NodeTypeFile, Confidence: 0.5},
			wantErr: true,
		},
		{
			name:    "confidence above range",
			node:    Node{ID: "n3", Name: "a", Type: NodeTypeFile, Confidence: 1.5},
			wantErr: true,
		},
		{
			name:    "confidence below range",
			node:    Node{ID: "n4", Name: "a", Type: NodeTypeFile, Confidence: -0.1},
			wantErr: true,
		},
		{
			name:    "confidence zero",
			node:    Node{ID: "n5", Name: "a", Type: NodeTypeFile, Confidence: 0},
			wantErr: false,
		},
		{
			name:    "confidence one",
			node:    Node{ID: "n6", Name: "a", Type: NodeTypeFile, Confidence: 1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddNode(tt.node)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err), "expected a ValidationError, got %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
	checkIndexConsistency(t, s)
}

func TestAddNode_UpsertRemovesStaleIndexEntries(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddNode(Node{
		ID: "n1", Name: "OldName", Type: NodeTypeFunction,
		Path: "src/old.ts", Confidence: 0.9,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "n1", Name: "NewName", Type: NodeTypeClass,
		Path: "src/new.ts", Confidence: 0.3,
	}))

	// Old values must be gone from every index.
	assert.Empty(t, s.FindNodesByName("OldName"))
	_, ok := s.FindNodeByPath("src/old.ts")
	assert.False(t, ok)
	assert.Empty(t, s.FindNodesByType(NodeTypeFunction))

	// New values are present.
	byName := s.FindNodesByName("newname")
	require.Len(t, byName, 1)
	assert.Equal(t, "n1", byName[0].ID)
	byType := s.FindNodesByType(NodeTypeClass)
	require.Len(t, byType, 1)

	checkIndexConsistency(t, s)
}

func TestAddNode_RefreshesLastUpdated(t *testing.T) {
	s := newTestStore(t)
	before := time.Now()
	require.NoError(t, s.AddNode(fileNode("file:a.go", "src/a.go")))
	n, ok := s.GetNode("file:a.go")
	require.True(t, ok)
	assert.False(t, n.LastUpdated.Before(before))
	require.NotNil(t, n.CreatedAt)
}

func TestRemoveNode_CascadesToEdges(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a.ts", "src/a.ts")))
	require.NoError(t, s.AddNode(Node{
		ID: "function:a.ts:foo", Name: "foo", Type: NodeTypeFunction,
		Path: "src/a.ts", Confidence: 0.7,
	}))
	require.NoError(t, s.AddEdge(Edge{
		ID: "e1", Source: "file:a.ts", Target: "function:a.ts:foo",
		Type: EdgeTypeContains, Confidence: 0.9,
	}))

	require.True(t, s.RemoveNode("file:a.ts"))

	// The function survives, the edge does not.
	_, ok := s.GetNode("function:a.ts:foo")
	assert.True(t, ok)
	_, ok = s.GetEdge("e1")
	assert.False(t, ok)
	assert.Empty(t, s.GetConnectedNodes("function:a.ts:foo", DirectionIncoming))

	// No edge anywhere references the removed node.
	for _, e := range s.FindEdges(nil) {
		assert.NotEqual(t, "file:a.ts", e.Source)
		assert.NotEqual(t, "file:a.ts", e.Target)
	}
	checkIndexConsistency(t, s)
}

func TestAddEdge_RejectsMissingEndpoints(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a.go", "a.go")))

	err := s.AddEdge(Edge{Source: "file:a.go", Target: "ghost", Type: EdgeTypeImports, Confidence: 0.5})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = s.AddEdge(Edge{Source: "ghost", Target: "file:a.go", Type: EdgeTypeImports, Confidence: 0.5})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestAddEdge_GeneratesID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a.go", "a.go")))
	require.NoError(t, s.AddNode(fileNode("file:b.go", "b.go")))

	require.NoError(t, s.AddEdge(Edge{
		Source: "file:a.go", Target: "file:b.go",
		Type: EdgeTypeImports, Confidence: 0.5,
	}))

	edges := s.FindEdges(nil)
	require.Len(t, edges, 1)
	assert.NotEmpty(t, edges[0].ID)
}

func TestGetConnectedNodes(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("a", "a.go")))
	require.NoError(t, s.AddNode(fileNode("b", "b.go")))
	require.NoError(t, s.AddNode(fileNode("c", "c.go")))
	require.NoError(t, s.AddEdge(Edge{ID: "ab", Source: "a", Target: "b", Type: EdgeTypeImports, Confidence: 0.9}))
	require.NoError(t, s.AddEdge(Edge{ID: "cb", Source: "c", Target: "b", Type: EdgeTypeImports, Confidence: 0.9}))

	out := s.GetConnectedNodes("a", DirectionOutgoing)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)

	in := s.GetConnectedNodes("b", DirectionIncoming)
	ids := make([]string, 0, len(in))
	for _, n := range in {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)

	both := s.GetConnectedNodes("b", DirectionBoth)
	assert.Len(t, both, 2)
	assert.Empty(t, s.GetConnectedNodes("b", DirectionOutgoing))
}

func TestUpdateNodeConfidence(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("a", "a.go"))) // confidence 0.8

	require.NoError(t, s.UpdateNodeConfidence("a", 0.1))
	n, ok := s.GetNode("a")
	require.True(t, ok)
	assert.InDelta(t, 0.1, n.Confidence, 1e-9)

	// Bucket index moved with the value.
	low := s.FindNodesByConfidenceRange(0, 0.2)
	require.Len(t, low, 1)
	assert.Empty(t, s.FindNodesByConfidenceRange(0.7, 0.9))

	require.Error(t, s.UpdateNodeConfidence("a", 1.2))
	assert.ErrorIs(t, s.UpdateNodeConfidence("ghost", 0.5), ErrNotFound)
	checkIndexConsistency(t, s)
}

func TestFindNodes_PredicateAndFull(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("a", "a.go")))
	require.NoError(t, s.AddNode(Node{ID: "v", Name: "count", Type: NodeTypeVariable, Confidence: 0.4}))

	all := s.FindNodes(nil)
	assert.Len(t, all, 2)

	vars := s.FindNodes(func(n *Node) bool { return n.Type == NodeTypeVariable })
	require.Len(t, vars, 1)
	assert.Equal(t, "v", vars[0].ID)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{ID: "a", Name: "a", Type: NodeTypeFile, Confidence: 0.2}))
	require.NoError(t, s.AddNode(Node{ID: "b", Name: "b", Type: NodeTypeFile, Confidence: 0.6}))
	require.NoError(t, s.AddNode(Node{ID: "f", Name: "f", Type: NodeTypeFunction, Confidence: 1.0}))
	require.NoError(t, s.AddEdge(Edge{ID: "e", Source: "a", Target: "f", Type: EdgeTypeContains, Confidence: 0.9}))

	stats := s.Stats()
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.Equal(t, 2, stats.NodesByType[NodeTypeFile])
	assert.Equal(t, 1, stats.NodesByType[NodeTypeFunction])
	assert.InDelta(t, 0.6, stats.MeanConfidence, 1e-9)
}

func TestGetNode_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "a", Name: "a", Type: NodeTypeVariable, Confidence: 0.5,
		Metadata: map[string]any{"scope": "local"},
	}))

	n, ok := s.GetNode("a")
	require.True(t, ok)
	n.Metadata["scope"] = "mutated"
	n.Name = "mutated"

	again, ok := s.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, "local", again.Metadata["scope"])
	assert.Equal(t, "a", again.Name)
}

func TestIndexConsistency_RandomizedOperations(t *testing.T) {
	s := newTestStore(t)

	// A fixed mixed sequence of adds, upserts, edge writes, and removals.
	for i := 0; i < 30; i++ {
		id := "n" + string(rune('a'+i%10))
		conf := float64(i%11) / 10
		require.NoError(t, s.AddNode(Node{
			ID:   id,
			Name: "Node " + id,
			Type: []NodeType{NodeTypeFile, NodeTypeFunction, NodeTypeVariable}[i%3],
			Path: "src/" + id + ".go",
			Confidence: conf,
		}))
		if i > 0 && i%4 == 0 {
			prev := "n" + string(rune('a'+(i-1)%10))
			_ = s.AddEdge(Edge{
				Source: prev, Target: id,
				Type: EdgeTypeRelatesTo, Confidence: conf,
			})
		}
		if i%7 == 0 {
			s.RemoveNode("n" + string(rune('a'+(i+3)%10)))
		}
		checkIndexConsistency(t, s)
	}
}
