package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/mindgraph/internal/graph"
	"github.com/dusk-indust/mindgraph/internal/scan"
)

const defaultQueryLimit = 20

// GraphService holds the store and collaborators used by MCP tool handlers.
// Handlers run one at a time per session, which preserves the store's single
// writer discipline.
type GraphService struct {
	store       *graph.Store
	memory      *graph.MemoryManager
	logger      *zap.Logger
	persistPath string // graph file written after mutating tools; "" disables
}

// NewGraphService creates a GraphService over the given store. A nil logger
// disables logging.
func NewGraphService(store *graph.Store, logger *zap.Logger) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{
		store:  store,
		memory: graph.NewMemoryManager(store, logger),
		logger: logger,
	}
}

// SetPersistPath sets the file the graph is saved to after mutating tools.
func (s *GraphService) SetPersistPath(path string) {
	s.persistPath = path
}

// persist saves the graph when a persist path is configured. Save failures
// are logged by the store, never surfaced to the MCP client.
func (s *GraphService) persist() {
	if s.persistPath != "" {
		s.store.Save(s.persistPath)
	}
}

// ScanRepo walks the project root, parses source files, populates the graph,
// and runs pattern detection. Returns scan and graph statistics.
func (s *GraphService) ScanRepo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScanRepoInput,
) (*mcp.CallToolResult, ScanRepoOutput, error) {
	scanner := scan.NewScanner(s.store, s.logger, scan.Options{
		Languages:   input.Languages,
		ExcludeDirs: input.ExcludeDirs,
	})

	result, err := scanner.Scan(ctx)
	if err != nil {
		return nil, ScanRepoOutput{}, fmt.Errorf("scan repo: %w", err)
	}

	if _, err := graph.DetectPatterns(s.store); err != nil {
		return nil, ScanRepoOutput{}, fmt.Errorf("detect patterns: %w", err)
	}

	s.persist()
	return nil, ScanRepoOutput{Result: *result, Stats: s.store.Stats()}, nil
}

// QueryGraph runs a ranked composite query over node names, paths, and
// semantic terms.
func (s *GraphService) QueryGraph(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input QueryGraphInput,
) (*mcp.CallToolResult, QueryGraphOutput, error) {
	if input.Query == "" {
		return nil, QueryGraphOutput{}, fmt.Errorf("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	results := s.store.FindNodesByCompositeQuery(input.Query, graph.CompositeQueryOptions{
		Type:         graph.NodeType(strings.ToLower(input.Type)),
		UseSemantics: input.UseSemantics,
	})

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	return nil, QueryGraphOutput{Results: results, Total: total}, nil
}

// FindByPath resolves a full or partial path against the graph.
func (s *GraphService) FindByPath(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input FindByPathInput,
) (*mcp.CallToolResult, FindByPathOutput, error) {
	if input.Path == "" {
		return nil, FindByPathOutput{}, fmt.Errorf("path is required")
	}
	return nil, FindByPathOutput{Results: s.store.FindNodesByPath(input.Path)}, nil
}

// GetConnected returns a node's neighbors through any edge type.
func (s *GraphService) GetConnected(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetConnectedInput,
) (*mcp.CallToolResult, GetConnectedOutput, error) {
	if input.NodeID == "" {
		return nil, GetConnectedOutput{}, fmt.Errorf("nodeId is required")
	}
	if _, ok := s.store.GetNode(input.NodeID); !ok {
		return nil, GetConnectedOutput{}, fmt.Errorf("get connected: %w", graph.ErrNotFound)
	}

	dir := graph.DirectionBoth
	switch strings.ToLower(input.Direction) {
	case "incoming":
		dir = graph.DirectionIncoming
	case "outgoing":
		dir = graph.DirectionOutgoing
	}

	return nil, GetConnectedOutput{Nodes: s.store.GetConnectedNodes(input.NodeID, dir)}, nil
}

// GetStats returns graph statistics and the last scan time.
func (s *GraphService) GetStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GetStatsInput,
) (*mcp.CallToolResult, GetStatsOutput, error) {
	out := GetStatsOutput{Stats: s.store.Stats()}
	if last := s.store.LastScan(); !last.IsZero() {
		out.LastScan = last.Format(time.RFC3339)
	}
	return nil, out, nil
}

// PruneGraph removes redundant low-value edges from the graph.
func (s *GraphService) PruneGraph(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input PruneGraphInput,
) (*mcp.CallToolResult, PruneGraphOutput, error) {
	opts := graph.DefaultPruneOptions()
	if input.Threshold > 0 {
		opts.Threshold = input.Threshold
	}
	if input.MaxRemovalPercentage > 0 {
		opts.MaxRemovalPercentage = input.MaxRemovalPercentage
	}
	opts.KeepTransitive = !input.RemoveTransitive
	opts.DryRun = input.DryRun

	result := s.memory.PruneRedundantEdges(opts)
	if !result.DryRun && result.Removed > 0 {
		s.persist()
	}
	return nil, PruneGraphOutput{Result: result}, nil
}

// CompressMetadata compacts variable node metadata to reduce memory use.
func (s *GraphService) CompressMetadata(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CompressMetadataInput,
) (*mcp.CallToolResult, CompressMetadataOutput, error) {
	result := s.memory.CompressVariableNodes(graph.CompressOptions{
		EnableLazyLoading: input.EnableLazyLoading,
		DeduplicateNames:  input.DeduplicateNames,
		DryRun:            input.DryRun,
	})
	if !result.DryRun && result.NodesCompressed > 0 {
		s.persist()
	}
	return nil, CompressMetadataOutput{Result: result}, nil
}
