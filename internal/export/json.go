// Package export renders the knowledge graph in human-facing formats. The
// JSON export here is a readable snapshot for tooling and diffs, unrelated to
// the compact persistence format the store itself reads and writes.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

// GraphExport is the top-level JSON export structure.
type GraphExport struct {
	ProjectRoot string           `json:"projectRoot"`
	ExportedAt  string           `json:"exportedAt"`
	LastScan    string           `json:"lastScan,omitempty"`
	Stats       graph.GraphStats `json:"stats"`
	Nodes       []graph.Node     `json:"nodes"`
	Edges       []graph.Edge     `json:"edges"`
}

// BuildExport snapshots the store into a GraphExport. Nodes and edges are
// sorted by ID so exports diff cleanly across runs.
func BuildExport(store *graph.Store) *GraphExport {
	nodes := store.FindNodes(nil)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := store.FindEdges(nil)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	out := &GraphExport{
		ProjectRoot: store.ProjectRoot(),
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Stats:       store.Stats(),
		Nodes:       nodes,
		Edges:       edges,
	}
	if last := store.LastScan(); !last.IsZero() {
		out.LastScan = last.UTC().Format(time.RFC3339)
	}
	return out
}

// WriteJSON renders the store as indented JSON.
func WriteJSON(store *graph.Store) ([]byte, error) {
	data, err := json.MarshalIndent(BuildExport(store), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal graph: %w", err)
	}
	return data, nil
}
