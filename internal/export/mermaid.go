package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram from the store. Files
// are grouped into subgraphs by the pattern nodes that claim them; imports
// edges become arrows.
func GenerateMermaid(store *graph.Store) string {
	// Mermaid needs alphanumeric node IDs.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	patterns := store.FindNodesByType(graph.NodeTypePattern)
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, p := range patterns {
		members := store.GetConnectedNodes(p.ID, graph.DirectionOutgoing)
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(p.ID), p.Name))
		for _, m := range members {
			if m.Type != graph.NodeTypeFile {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(m.ID), shortPath(m.Path)))
		}
		sb.WriteString("  end\n")
	}

	// Ungrouped files appear as standalone nodes when an edge references them.
	edges := store.FindEdges(func(e *graph.Edge) bool { return e.Type == graph.EdgeTypeImports })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("  %s -->|%s| %s\n", getID(e.Source), e.Type, getID(e.Target)))
	}

	return sb.String()
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
