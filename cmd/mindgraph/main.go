package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/dusk-indust/mindgraph/internal/config"
	"github.com/dusk-indust/mindgraph/internal/graph"
	"github.com/dusk-indust/mindgraph/internal/logging"
	"github.com/dusk-indust/mindgraph/internal/mcptools"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ProjectRoot string
	CacheDir    string
	Languages   string
	Exclude     string
	Verbose     bool
	Scan        bool
	Watch       bool
	Export      string
	MirrorKuzu  bool
	ServeMCP    bool
	ServeHTTP   string
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("mindgraph", flag.ContinueOnError)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the repository to index")
	fs.StringVar(&flags.CacheDir, "cache-dir", "", "directory for the persisted graph (default: .mindgraph)")
	fs.StringVar(&flags.Languages, "languages", "", "comma-separated languages to scan (default: all supported)")
	fs.StringVar(&flags.Exclude, "exclude", "", "comma-separated extra directories to skip")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.Scan, "scan", false, "scan the repository and persist the graph")
	fs.BoolVar(&flags.Watch, "watch", false, "scan, then keep the graph updated as files change")
	fs.StringVar(&flags.Export, "export", "", "print the graph to stdout: json or mermaid")
	fs.BoolVar(&flags.MirrorKuzu, "mirror-kuzu", false, "mirror the graph into an embedded Kuzu database (cgo builds only)")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server over stdio for agent integration")
	fs.StringVar(&flags.ServeHTTP, "serve-http", "", "run as MCP server over HTTP on the given address")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	root, err := filepath.Abs(flags.ProjectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if flags.Verbose {
		cfg.Verbose = true
	}
	if flags.CacheDir != "" {
		cfg.CacheDir = flags.CacheDir
	}
	if flags.Languages != "" {
		cfg.Languages = splitList(flags.Languages)
	}
	if flags.Exclude != "" {
		cfg.ExcludeDirs = append(cfg.ExcludeDirs, splitList(flags.Exclude)...)
	}

	logger := logging.NewLogger(cfg.Verbose)
	defer logger.Sync()

	graphPath := cfg.GraphPath(root)
	store := graph.NewStore(root, logger)
	store.Load(graphPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.Scan:
		return runScan(ctx, store, logger, cfg, graphPath)
	case flags.Watch:
		return runWatch(ctx, store, logger, cfg, graphPath)
	case flags.Export != "":
		return runExport(store, flags.Export)
	case flags.MirrorKuzu:
		return runKuzuMirror(store, graphPath)
	case flags.ServeHTTP != "":
		svc := newService(store, logger, graphPath)
		logger.Info("serving MCP over HTTP", zap.String("addr", flags.ServeHTTP))
		return mcptools.RunMCPServerHTTP(ctx, svc, flags.ServeHTTP)
	case flags.ServeMCP:
		svc := newService(store, logger, graphPath)
		server := mcptools.NewMindGraphMCPServer(svc)
		return mcptools.RunMCPServerStdio(ctx, server)
	default:
		fs.Usage()
		return nil
	}
}

func newService(store *graph.Store, logger *zap.Logger, graphPath string) *mcptools.GraphService {
	svc := mcptools.NewGraphService(store, logger)
	svc.SetPersistPath(graphPath)
	return svc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
