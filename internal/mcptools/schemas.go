package mcptools

import (
	"github.com/dusk-indust/mindgraph/internal/graph"
	"github.com/dusk-indust/mindgraph/internal/scan"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// ScanRepoInput is the input for the scan_repo MCP tool.
type ScanRepoInput struct {
	Languages   []string `json:"languages,omitempty" jsonschema:"languages to scan (default: all supported). Values: go, typescript, python, rust"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directories to exclude from scanning (e.g. vendor, node_modules)"`
}

// ScanRepoOutput is the result of the scan_repo MCP tool.
type ScanRepoOutput struct {
	Result scan.Result      `json:"result"`
	Stats  graph.GraphStats `json:"stats"`
}

// QueryGraphInput is the input for the query_graph MCP tool.
type QueryGraphInput struct {
	Query        string `json:"query" jsonschema:"free-text search query matched against node names, paths, and semantics"`
	Type         string `json:"type,omitempty" jsonschema:"restrict results to one node type: file, directory, function, class, variable, pattern, document"`
	UseSemantics bool   `json:"useSemantics,omitempty" jsonschema:"expand query terms with language and framework synonyms"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QueryGraphOutput is the result of the query_graph MCP tool.
type QueryGraphOutput struct {
	Results []graph.ScoredNode `json:"results"`
	Total   int                `json:"total"`
}

// FindByPathInput is the input for the find_by_path MCP tool.
type FindByPathInput struct {
	Path string `json:"path" jsonschema:"full or partial repo-relative path; suffixes, filenames, and backslash forms resolve"`
}

// FindByPathOutput is the result of the find_by_path MCP tool.
type FindByPathOutput struct {
	Results []graph.ScoredNode `json:"results"`
}

// GetConnectedInput is the input for the get_connected MCP tool.
type GetConnectedInput struct {
	NodeID    string `json:"nodeId" jsonschema:"node identifier, e.g. file:src/engine.ts"`
	Direction string `json:"direction,omitempty" jsonschema:"incoming, outgoing, or both (default: both)"`
}

// GetConnectedOutput is the result of the get_connected MCP tool.
type GetConnectedOutput struct {
	Nodes []graph.Node `json:"nodes"`
}

// GetStatsInput is the input for the get_stats MCP tool.
type GetStatsInput struct{}

// GetStatsOutput is the result of the get_stats MCP tool.
type GetStatsOutput struct {
	Stats    graph.GraphStats `json:"stats"`
	LastScan string           `json:"lastScan,omitempty"`
}

// PruneGraphInput is the input for the prune_graph MCP tool.
type PruneGraphInput struct {
	Threshold            float64 `json:"threshold,omitempty" jsonschema:"confidence threshold driving the weak-edge cutoff (default: 0.5)"`
	RemoveTransitive     bool    `json:"removeTransitive,omitempty" jsonschema:"also remove same-type transitive shortcut edges"`
	DryRun               bool    `json:"dryRun,omitempty" jsonschema:"report what would be removed without mutating the graph"`
	MaxRemovalPercentage float64 `json:"maxRemovalPercentage,omitempty" jsonschema:"safety cap on the share of edges removed in one pass (default: 25)"`
}

// PruneGraphOutput is the result of the prune_graph MCP tool.
type PruneGraphOutput struct {
	Result graph.PruneResult `json:"result"`
}

// CompressMetadataInput is the input for the compress_metadata MCP tool.
type CompressMetadataInput struct {
	EnableLazyLoading bool `json:"enableLazyLoading,omitempty" jsonschema:"demote non-essential variable metadata behind a lazyLoaded summary"`
	DeduplicateNames  bool `json:"deduplicateNames,omitempty" jsonschema:"estimate savings from repeated variable names"`
	DryRun            bool `json:"dryRun,omitempty" jsonschema:"report estimated savings without mutating nodes"`
}

// CompressMetadataOutput is the result of the compress_metadata MCP tool.
type CompressMetadataOutput struct {
	Result graph.CompressResult `json:"result"`
}
