package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addFileWithImports inserts a file node and imports edges to targets.
func addFileWithImports(t *testing.T, s *Store, path string, imports ...string) {
	t.Helper()
	require.NoError(t, s.AddNode(fileNode("file:"+path, path)))
	for _, target := range imports {
		require.NoError(t, s.AddEdge(Edge{
			Source: "file:" + path, Target: "file:" + target,
			Type: EdgeTypeImports, Confidence: 0.9,
		}))
	}
}

func TestDetectPatterns_NoEdges(t *testing.T) {
	s := newTestStore(t)
	addFileWithImports(t, s, "src/a.go")
	addFileWithImports(t, s, "src/b.go")

	patterns, err := DetectPatterns(s)
	require.NoError(t, err)
	assert.Empty(t, patterns, "singleton components form no pattern")
	assert.Empty(t, s.FindNodesByType(NodeTypePattern))
}

func TestDetectPatterns_OneComponent(t *testing.T) {
	s := newTestStore(t)
	addFileWithImports(t, s, "src/pkg/a.go")
	addFileWithImports(t, s, "src/pkg/b.go", "src/pkg/a.go")
	addFileWithImports(t, s, "src/other/c.go")

	patterns, err := DetectPatterns(s)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, NodeTypePattern, p.Type)
	assert.Equal(t, "src/pkg", p.Name)
	assert.Equal(t, 2, p.Metadata["memberCount"])
	assert.InDelta(t, 1.0, p.Confidence, 1e-9, "fully internal component has cohesion 1")

	members := s.GetConnectedNodes(p.ID, DirectionOutgoing)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{"file:src/pkg/a.go", "file:src/pkg/b.go"}, ids)
}

func TestDetectPatterns_Rerunnable(t *testing.T) {
	s := newTestStore(t)
	addFileWithImports(t, s, "src/pkg/a.go")
	addFileWithImports(t, s, "src/pkg/b.go", "src/pkg/a.go")

	_, err := DetectPatterns(s)
	require.NoError(t, err)
	_, err = DetectPatterns(s)
	require.NoError(t, err)

	// Upsert semantics: a second pass must not duplicate pattern nodes.
	assert.Len(t, s.FindNodesByType(NodeTypePattern), 1)
	checkIndexConsistency(t, s)
}
