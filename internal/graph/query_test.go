package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNodesByType(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(fileNode("file:a", "a.go")))
	require.NoError(t, s.AddNode(Node{ID: "fn:a", Name: "run", Type: NodeTypeFunction, Confidence: 0.5}))

	files := s.FindNodesByType(NodeTypeFile)
	require.Len(t, files, 1)
	assert.Equal(t, "file:a", files[0].ID)
	assert.Empty(t, s.FindNodesByType(NodeTypeClass))
}

func TestFindNodesByName_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{ID: "c", Name: "UserService", Type: NodeTypeClass, Confidence: 0.8}))

	for _, query := range []string{"UserService", "userservice", "USERSERVICE"} {
		got := s.FindNodesByName(query)
		require.Len(t, got, 1, "query %q", query)
		assert.Equal(t, "c", got[0].ID)
	}
}

func TestFindNodesByConfidenceRange(t *testing.T) {
	s := newTestStore(t)
	for id, conf := range map[string]float64{"a": 0.05, "b": 0.35, "c": 0.75, "d": 1.0} {
		require.NoError(t, s.AddNode(Node{ID: id, Name: id, Type: NodeTypeFile, Confidence: conf}))
	}

	mid := s.FindNodesByConfidenceRange(0.3, 0.8)
	ids := make([]string, 0, len(mid))
	for _, n := range mid {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"b", "c"}, ids)

	// Bucket boundaries are inclusive on exact confidence.
	top := s.FindNodesByConfidenceRange(1.0, 1.0)
	require.Len(t, top, 1)
	assert.Equal(t, "d", top[0].ID)
}

func TestCompositeQuery_PhraseRanking(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:engine", Name: "MindMapEngine.ts", Type: NodeTypeFile,
		Path: "src/core/MindMapEngine.ts", Confidence: 0.8,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "file:other", Name: "Engine.ts", Type: NodeTypeFile,
		Path: "src/core/Engine.ts", Confidence: 0.8,
	}))

	results := s.FindNodesByCompositeQuery("mind map engine", CompositeQueryOptions{})
	require.NotEmpty(t, results)
	assert.Equal(t, "file:engine", results[0].Node.ID,
		"multi-token phrase must rank the full match first")

	// Both files contain "engine" so both are candidates.
	require.Len(t, results, 2)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestCompositeQuery_ConfidenceBoostCapped(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:engine", Name: "MindMapEngine.ts", Type: NodeTypeFile,
		Path: "src/core/MindMapEngine.ts", Confidence: 0.95,
	}))

	results := s.FindNodesByCompositeQuery("mind map engine", CompositeQueryOptions{})
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].Node.Confidence, 1.0)
	assert.Greater(t, results[0].Node.Confidence, 0.95, "score must boost confidence")

	// The stored node keeps its original confidence.
	stored, ok := s.GetNode("file:engine")
	require.True(t, ok)
	assert.InDelta(t, 0.95, stored.Confidence, 1e-9)
}

func TestCompositeQuery_TypeScoped(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "fn:parse", Name: "parse_config", Type: NodeTypeFunction,
		Path: "src/config.ts", Confidence: 0.7,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "file:parse", Name: "parse.ts", Type: NodeTypeFile,
		Path: "src/parse.ts", Confidence: 0.7,
	}))

	results := s.FindNodesByCompositeQuery("parse", CompositeQueryOptions{Type: NodeTypeFunction})
	require.Len(t, results, 1)
	assert.Equal(t, "fn:parse", results[0].Node.ID)
}

func TestCompositeQuery_Semantics(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:a", Name: "helpers.ts", Type: NodeTypeFile,
		Path: "src/helpers.ts", Confidence: 0.6,
		Properties: map[string]any{"language": "typescript"},
	}))

	// "ts" is a synonym of "typescript"; without semantics the name token
	// "ts" still matches, so query on the canonical term instead.
	with := s.FindNodesByCompositeQuery("typescript", CompositeQueryOptions{UseSemantics: true})
	require.Len(t, with, 1)
	assert.Equal(t, "file:a", with[0].Node.ID)

	without := s.FindNodesByCompositeQuery("typescript", CompositeQueryOptions{})
	assert.Empty(t, without)
}

func TestFindNodesByPath_PartialResolution(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:foo", Name: "Foo.ts", Type: NodeTypeFile,
		Path: "src/core/Foo.ts", Confidence: 0.9,
	}))

	tests := []struct {
		name  string
		query string
		score float64
	}{
		{"exact", "src/core/Foo.ts", 1.4},
		{"exact with leading ./", "./src/core/Foo.ts", 1.4},
		{"suffix", "core/Foo.ts", 1.2},
		{"filename only", "Foo.ts", 1.2},
		{"backslash form", `src\core\Foo.ts`, 1.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := s.FindNodesByPath(tt.query)
			require.Len(t, results, 1)
			assert.Equal(t, "file:foo", results[0].Node.ID)
			assert.InDelta(t, tt.score, results[0].Score, 1e-9)
		})
	}

	assert.Empty(t, s.FindNodesByPath("nowhere/Foo.ts"))
}

func TestFindNodesByPath_ExactOutranksSuffix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:short", Name: "Foo.ts", Type: NodeTypeFile,
		Path: "core/Foo.ts", Confidence: 0.9,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "file:long", Name: "Foo.ts", Type: NodeTypeFile,
		Path: "src/core/Foo.ts", Confidence: 0.9,
	}))

	results := s.FindNodesByPath("core/Foo.ts")
	require.Len(t, results, 2)
	assert.Equal(t, "file:short", results[0].Node.ID)
	assert.InDelta(t, 1.4, results[0].Score, 1e-9)
	assert.InDelta(t, 1.2, results[1].Score, 1e-9)
}

func TestFindNodesByPath_ExactOutranksSuffixRegardlessOfConfidence(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:exact", Name: "Foo.ts", Type: NodeTypeFile,
		Path: "core/Foo.ts", Confidence: 0.5,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "file:variant", Name: "Foo.ts", Type: NodeTypeFile,
		Path: "src/core/Foo.ts", Confidence: 1.0,
	}))

	// Ordering follows the score sentinel alone; a high-confidence suffix
	// match must not displace the exact normalized match.
	results := s.FindNodesByPath("core/Foo.ts")
	require.Len(t, results, 2)
	assert.Equal(t, "file:exact", results[0].Node.ID)
	assert.InDelta(t, 1.4, results[0].Score, 1e-9)
	assert.Equal(t, "file:variant", results[1].Node.ID)
	assert.InDelta(t, 1.2, results[1].Score, 1e-9)
}

func TestFindNodesByMultipleTerms(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:auth", Name: "auth_service.ts", Type: NodeTypeFile,
		Path: "src/auth/auth_service.ts", Confidence: 0.8,
	}))
	require.NoError(t, s.AddNode(Node{
		ID: "file:user", Name: "user_service.ts", Type: NodeTypeFile,
		Path: "src/user/user_service.ts", Confidence: 0.8,
	}))

	// matchAll: only nodes matching every term.
	all := s.FindNodesByMultipleTerms([]string{"auth", "service"}, true)
	require.Len(t, all, 1)
	assert.Equal(t, "file:auth", all[0].Node.ID)
	assert.InDelta(t, 1.0, all[0].Score, 1e-9)

	// matchAny: union, ranked by relevance.
	union := s.FindNodesByMultipleTerms([]string{"auth", "service"}, false)
	require.Len(t, union, 2)
	assert.Equal(t, "file:auth", union[0].Node.ID)
	assert.InDelta(t, 0.5, union[1].Score, 1e-9)
}

func TestFindNodesByLanguageAndFramework(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(Node{
		ID: "file:a", Name: "app.tsx", Type: NodeTypeFile, Confidence: 0.8,
		Properties: map[string]any{"language": "typescript", "framework": "react"},
	}))

	byLang := s.FindNodesByLanguage("TypeScript")
	require.Len(t, byLang, 1)
	byFw := s.FindNodesByFramework("react")
	require.Len(t, byFw, 1)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"MindMapEngine.ts", []string{"mindmapengine", "mind", "map", "engine", "ts"}},
		{"src/core/Foo.ts", []string{"src", "core", "foo", "ts"}},
		{"snake_case-name", []string{"snake", "case", "name"}},
		{"a b  c", []string{}}, // single-char tokens dropped
		{"HTTPServer", []string{"httpserver", "http", "server"}},
		{`win\path\file`, []string{"win", "path", "file"}},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got, "tokenize(%q)", tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, "tokenize(%q)", tt.in)
	}
}
