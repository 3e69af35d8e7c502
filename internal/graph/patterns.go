package graph

import "strings"

// DetectPatterns finds groups of tightly coupled files and records each as a
// pattern node, with relates_to edges to the member files.
//
// Algorithm:
//  1. Build an undirected adjacency list from imports edges among file nodes.
//  2. Find connected components via BFS.
//  3. For each component with >= 2 files, compute a cohesion score and
//     upsert a pattern node named after the longest common path prefix.
//
// Pattern node confidence is the cohesion score: internal edges over total
// incident edges.
func DetectPatterns(store *Store) ([]Node, error) {
	files := store.FindNodesByType(NodeTypeFile)
	fileIDs := make(map[string]struct{}, len(files))
	for _, f := range files {
		fileIDs[f.ID] = struct{}{}
	}

	adj := buildImportAdjacency(store, fileIDs)

	visited := make(map[string]struct{}, len(files))
	var patterns []Node

	for _, f := range files {
		if _, ok := visited[f.ID]; ok {
			continue
		}
		component := bfsComponent(f.ID, adj, visited)
		if len(component) < 2 {
			continue
		}

		cohesion := componentCohesion(component, adj)
		name := commonPathPrefix(memberPaths(store, component))
		if name == "" {
			name = f.ID
		}

		pattern := Node{
			ID:         "pattern:" + name,
			Name:       name,
			Type:       NodeTypePattern,
			Confidence: cohesion,
			Metadata: map[string]any{
				"memberCount": len(component),
				"cohesion":    cohesion,
			},
		}
		if err := store.AddNode(pattern); err != nil {
			return nil, err
		}
		for _, member := range component {
			err := store.AddEdge(Edge{
				ID:         "edge:" + pattern.ID + ":" + member,
				Source:     pattern.ID,
				Target:     member,
				Type:       EdgeTypeRelatesTo,
				Confidence: cohesion,
			})
			if err != nil {
				return nil, err
			}
		}
		patterns = append(patterns, pattern)
	}

	return patterns, nil
}

// buildImportAdjacency constructs a bidirectional adjacency list from
// imports edges between the given file nodes, in one pass over the edge map.
func buildImportAdjacency(store *Store, fileIDs map[string]struct{}) map[string]map[string]struct{} {
	adj := make(map[string]map[string]struct{}, len(fileIDs))
	for id := range fileIDs {
		adj[id] = make(map[string]struct{})
	}
	for _, e := range store.edges {
		if e.Type != EdgeTypeImports {
			continue
		}
		if adj[e.Source] == nil || adj[e.Target] == nil {
			continue
		}
		adj[e.Source][e.Target] = struct{}{}
		adj[e.Target][e.Source] = struct{}{}
	}
	return adj
}

// bfsComponent walks the adjacency list from start and returns every
// reachable node, marking them visited.
func bfsComponent(start string, adj map[string]map[string]struct{}, visited map[string]struct{}) []string {
	var component []string
	queue := []string{start}
	visited[start] = struct{}{}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		component = append(component, id)
		for neighbor := range adj[id] {
			if _, ok := visited[neighbor]; !ok {
				visited[neighbor] = struct{}{}
				queue = append(queue, neighbor)
			}
		}
	}
	return component
}

// componentCohesion is internal_edges / (internal_edges + external_edges)
// for a component. Each undirected internal edge counts once.
func componentCohesion(component []string, adj map[string]map[string]struct{}) float64 {
	memberSet := make(map[string]struct{}, len(component))
	for _, m := range component {
		memberSet[m] = struct{}{}
	}

	internal, external := 0, 0
	for _, m := range component {
		for neighbor := range adj[m] {
			if _, ok := memberSet[neighbor]; ok {
				if m < neighbor {
					internal++
				}
			} else {
				external++
			}
		}
	}

	total := internal + external
	if total == 0 {
		return 0
	}
	return float64(internal) / float64(total)
}

// memberPaths resolves member file ids to their paths, skipping files with
// no path.
func memberPaths(store *Store, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := store.nodes[id]; ok && n.Path != "" {
			out = append(out, n.Path)
		}
	}
	return out
}

// commonPathPrefix finds the longest common directory prefix among a set of
// paths. Returns an empty string when there is none.
func commonPathPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	if len(paths) == 1 {
		return paths[0]
	}

	prefix := paths[0]
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, prefix) {
			trimmed := strings.TrimRight(prefix, "/")
			idx := strings.LastIndex(trimmed, "/")
			if idx < 0 {
				return ""
			}
			prefix = trimmed[:idx+1]
			if prefix == "/" || prefix == "" {
				return prefix
			}
		}
	}

	// End at a directory boundary.
	if !strings.HasSuffix(prefix, "/") {
		idx := strings.LastIndex(prefix, "/")
		if idx >= 0 {
			prefix = prefix[:idx+1]
		}
	}
	return strings.TrimSuffix(prefix, "/")
}
