package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMindGraphMCPServer creates an MCP server with all 7 graph tools registered.
func NewMindGraphMCPServer(svc *GraphService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mindgraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_repo",
		Description: "Scan the project repository and build the knowledge graph. Walks the file tree, parses source files using tree-sitter, extracts symbols and dependencies, and detects import patterns.",
	}, svc.ScanRepo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_graph",
		Description: "Search the knowledge graph with a free-text query. Matches node names, paths, term pairs, and (optionally) language/framework synonyms; results are ranked by relevance times confidence.",
	}, svc.QueryGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_by_path",
		Description: "Resolve a full or partial file path to graph nodes. Handles backslash paths, leading ./, path suffixes, and bare filenames.",
	}, svc.FindByPath)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_connected",
		Description: "Return the neighbors of a node through its incoming and/or outgoing edges.",
	}, svc.GetConnected)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Return node/edge counts, the per-type node breakdown, mean confidence, and the last scan time.",
	}, svc.GetStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "prune_graph",
		Description: "Remove redundant low-confidence edges from the graph, bounded by a global safety cap. Supports dry runs.",
	}, svc.PruneGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compress_metadata",
		Description: "Compact variable node metadata: demote non-essential keys behind a lazy-loading summary and estimate memory savings.",
	}, svc.CompressMetadata)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMCPServerHTTP starts an HTTP server exposing the graph tools.
func RunMCPServerHTTP(ctx context.Context, svc *GraphService, addr string) error {
	server := NewMindGraphMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
