package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

// defaultExcludeDirs are directory names skipped during the walk in addition
// to anything configured by the caller.
var defaultExcludeDirs = []string{
	".git", "node_modules", "vendor", "dist", "build", "target", "__pycache__", ".mindgraph",
}

const defaultWorkers = 4

// Options configures a Scanner.
type Options struct {
	// Languages restricts parsing to the named languages. Empty means all
	// supported languages.
	Languages []string

	// ExcludeDirs are directory names to skip, merged with the defaults.
	ExcludeDirs []string

	// Workers caps the number of concurrent parse goroutines.
	Workers int
}

// Result summarizes a completed scan.
type Result struct {
	FilesParsed  int           `json:"filesParsed"`
	FilesSkipped int           `json:"filesSkipped"`
	NodesAdded   int           `json:"nodesAdded"`
	EdgesAdded   int           `json:"edgesAdded"`
	Duration     time.Duration `json:"duration"`
}

// Scanner walks the store's project root, parses source files in parallel,
// and applies the extracted nodes and edges to the store. Parsing fans out
// across workers; all store writes happen on the calling goroutine, matching
// the store's single writer discipline.
type Scanner struct {
	store     *graph.Store
	parser    *Parser
	logger    *zap.Logger
	languages map[graph.Language]bool
	excludes  map[string]bool
	workers   int
}

// NewScanner creates a Scanner over the given store. A nil logger disables
// logging.
func NewScanner(store *graph.Store, logger *zap.Logger, opts Options) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}

	languages := make(map[graph.Language]bool)
	if len(opts.Languages) == 0 {
		for _, l := range graph.Tier1Languages {
			languages[l] = true
		}
	} else {
		for _, l := range opts.Languages {
			languages[graph.Language(strings.ToLower(l))] = true
		}
	}

	excludes := make(map[string]bool)
	for _, d := range defaultExcludeDirs {
		excludes[d] = true
	}
	for _, d := range opts.ExcludeDirs {
		excludes[d] = true
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Scanner{
		store:     store,
		parser:    NewParser(),
		logger:    logger,
		languages: languages,
		excludes:  excludes,
		workers:   workers,
	}
}

// candidate is a source file selected by the walk, pending parse.
type candidate struct {
	relPath string
	lang    graph.Language
}

// Scan walks the project root, parses every matching source file, and
// populates the store. Parse failures skip the file; walk and write failures
// abort the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	root := s.store.ProjectRoot()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan: cannot access project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: project root is not a directory: %s", root)
	}

	candidates, err := s.collect(root)
	if err != nil {
		return nil, fmt.Errorf("scan: walk: %w", err)
	}

	results, skipped, err := s.parseAll(ctx, root, candidates)
	if err != nil {
		return nil, err
	}

	knownFiles := make([]string, 0, len(results))
	for _, res := range results {
		knownFiles = append(knownFiles, res.Path)
	}
	resolver := NewResolver(root, knownFiles)

	before := s.store.Stats()
	if err := s.apply(results, resolver); err != nil {
		return nil, err
	}
	after := s.store.Stats()

	s.store.SetLastScan(time.Now())

	result := &Result{
		FilesParsed:  len(results),
		FilesSkipped: skipped,
		NodesAdded:   after.NodeCount - before.NodeCount,
		EdgesAdded:   after.EdgeCount - before.EdgeCount,
		Duration:     time.Since(start),
	}
	s.logger.Info("scan complete",
		zap.Int("filesParsed", result.FilesParsed),
		zap.Int("filesSkipped", result.FilesSkipped),
		zap.Int("nodesAdded", result.NodesAdded),
		zap.Int("edgesAdded", result.EdgesAdded),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// ScanFile re-parses a single file and replaces its nodes and edges in the
// store. Used by the watcher for incremental updates after a file change.
func (s *Scanner) ScanFile(ctx context.Context, relPath string) error {
	lang, ok := ExtToLanguage[filepath.Ext(relPath)]
	if !ok || !s.languages[lang] {
		return nil
	}

	root := s.store.ProjectRoot()
	source, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("scan: read %s: %w", relPath, err)
	}

	res, err := s.parser.Parse(ctx, relPath, source, lang)
	if err != nil {
		return fmt.Errorf("scan: parse %s: %w", relPath, err)
	}

	s.RemoveFile(relPath)

	// Resolve against every file already in the graph plus this one.
	known := []string{relPath}
	for _, n := range s.store.FindNodesByType(graph.NodeTypeFile) {
		if n.Path != relPath {
			known = append(known, n.Path)
		}
	}
	resolver := NewResolver(root, known)

	return s.apply([]*fileResult{res}, resolver)
}

// RemoveFile removes the file node for relPath along with every symbol node
// extracted from it. Incident edges are cascaded by the store.
func (s *Scanner) RemoveFile(relPath string) {
	stale := s.store.FindNodes(func(n *graph.Node) bool {
		if n.Path != relPath {
			return false
		}
		switch n.Type {
		case graph.NodeTypeFile, graph.NodeTypeFunction, graph.NodeTypeClass, graph.NodeTypeVariable:
			return true
		}
		return false
	})
	for _, n := range stale {
		s.store.RemoveNode(n.ID)
	}
}

// collect walks the tree under root and returns the source files to parse.
func (s *Scanner) collect(root string) ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if s.excludes[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := ExtToLanguage[filepath.Ext(path)]
		if !ok || !s.languages[lang] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}
		out = append(out, candidate{relPath: filepath.ToSlash(relPath), lang: lang})
		return nil
	})
	return out, err
}

// parseAll fans candidate parsing out across the worker pool. The returned
// slice holds only successful results, in walk order.
func (s *Scanner) parseAll(ctx context.Context, root string, candidates []candidate) ([]*fileResult, int, error) {
	parsed := make([]*fileResult, len(candidates))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			source, err := os.ReadFile(filepath.Join(root, c.relPath))
			if err != nil {
				skipped.Add(1)
				s.logger.Debug("skipping unreadable file", zap.String("path", c.relPath), zap.Error(err))
				return nil
			}

			res, err := s.parser.Parse(gctx, c.relPath, source, c.lang)
			if err != nil {
				skipped.Add(1)
				s.logger.Debug("skipping unparseable file", zap.String("path", c.relPath), zap.Error(err))
				return nil
			}

			parsed[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("scan: parse: %w", err)
	}

	results := make([]*fileResult, 0, len(parsed))
	for _, res := range parsed {
		if res != nil {
			results = append(results, res)
		}
	}
	return results, int(skipped.Load()), nil
}

// apply writes parse results into the store: directory and file nodes first,
// then symbols and contains edges, then imports, calls, and implements edges
// once every endpoint exists.
func (s *Scanner) apply(results []*fileResult, resolver *Resolver) error {
	seenDirs := make(map[string]bool)

	for _, res := range results {
		if err := s.addDirectories(res.Path, seenDirs); err != nil {
			return err
		}
		if err := s.addFileNode(res); err != nil {
			return err
		}
	}

	// Symbol name index for call and implements resolution. Only unambiguous
	// names (a single declaration repo-wide) resolve to edges.
	symbolIDs := make(map[string][]string)
	for _, res := range results {
		for _, sym := range res.Symbols {
			id := SymbolNodeID(symbolNodeType(sym.Kind), res.Path, sym.Name)
			symbolIDs[sym.Name] = append(symbolIDs[sym.Name], id)
		}
	}

	for _, res := range results {
		if err := s.addSymbols(res); err != nil {
			return err
		}
	}

	for _, res := range results {
		if err := s.addRelationEdges(res, resolver, symbolIDs); err != nil {
			return err
		}
	}
	return nil
}

// addDirectories ensures a directory node and contains edge exists for every
// ancestor of relPath.
func (s *Scanner) addDirectories(relPath string, seen map[string]bool) error {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	var chain []string
	for dir != "." && dir != "/" && dir != "" {
		chain = append(chain, dir)
		dir = filepath.ToSlash(filepath.Dir(dir))
	}

	// Create parents before children.
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		if seen[d] {
			continue
		}
		seen[d] = true

		node := graph.Node{
			ID:         DirNodeID(d),
			Name:       filepath.Base(d),
			Type:       graph.NodeTypeDirectory,
			Path:       d,
			Confidence: 1.0,
		}
		if err := s.store.AddNode(node); err != nil {
			return fmt.Errorf("scan: add directory %s: %w", d, err)
		}

		parent := filepath.ToSlash(filepath.Dir(d))
		if parent != "." && parent != "/" && parent != "" {
			if err := s.addEdge(DirNodeID(parent), node.ID, graph.EdgeTypeContains, 1.0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) addFileNode(res *fileResult) error {
	node := graph.Node{
		ID:         FileNodeID(res.Path),
		Name:       filepath.Base(res.Path),
		Type:       graph.NodeTypeFile,
		Path:       res.Path,
		Confidence: 1.0,
		Metadata:   map[string]any{"loc": res.LOC},
		Properties: map[string]any{"language": string(res.Language)},
	}
	if err := s.store.AddNode(node); err != nil {
		return fmt.Errorf("scan: add file %s: %w", res.Path, err)
	}

	dir := filepath.ToSlash(filepath.Dir(res.Path))
	if dir != "." && dir != "/" && dir != "" {
		return s.addEdge(DirNodeID(dir), node.ID, graph.EdgeTypeContains, 1.0)
	}
	return nil
}

func (s *Scanner) addSymbols(res *fileResult) error {
	fileID := FileNodeID(res.Path)

	for _, sym := range res.Symbols {
		nodeType := symbolNodeType(sym.Kind)
		meta := map[string]any{
			"lineNumber": sym.StartLine,
			"endLine":    sym.EndLine,
			"scope":      sym.Scope,
			"exported":   sym.Exported,
		}
		if sym.VariableType != "" {
			meta["variableType"] = sym.VariableType
		}

		confidence := 0.7
		if sym.Exported {
			confidence = 0.9
		}

		node := graph.Node{
			ID:         SymbolNodeID(nodeType, res.Path, sym.Name),
			Name:       sym.Name,
			Type:       nodeType,
			Path:       res.Path,
			Confidence: confidence,
			Metadata:   meta,
			Properties: map[string]any{"language": string(res.Language)},
		}
		if err := s.store.AddNode(node); err != nil {
			return fmt.Errorf("scan: add symbol %s: %w", node.ID, err)
		}
		if err := s.addEdge(fileID, node.ID, graph.EdgeTypeContains, 1.0); err != nil {
			return err
		}
	}
	return nil
}

// addRelationEdges emits imports, calls, and implements edges for one file.
// Unresolvable specifiers and ambiguous names are dropped rather than left
// dangling.
func (s *Scanner) addRelationEdges(res *fileResult, resolver *Resolver, symbolIDs map[string][]string) error {
	fileID := FileNodeID(res.Path)

	for _, spec := range res.Imports {
		target, ok := resolver.Resolve(spec, res.Path, res.Language)
		if !ok {
			continue
		}
		if err := s.addEdge(fileID, FileNodeID(filepath.ToSlash(target)), graph.EdgeTypeImports, 0.9); err != nil {
			return err
		}
	}

	for _, callee := range res.Calls {
		// Strip receiver/module qualifiers: "svc.GetUser" matches "GetUser".
		name := callee
		if idx := strings.LastIndexAny(name, ".:"); idx != -1 {
			name = name[idx+1:]
		}
		ids := symbolIDs[name]
		if len(ids) != 1 {
			continue
		}
		if err := s.addEdge(fileID, ids[0], graph.EdgeTypeCalls, 0.6); err != nil {
			return err
		}
	}

	for _, pair := range res.Implements {
		typeIDs := symbolIDs[pair.Type]
		traitIDs := symbolIDs[pair.Trait]
		if len(typeIDs) != 1 || len(traitIDs) != 1 {
			continue
		}
		if err := s.addEdge(typeIDs[0], traitIDs[0], graph.EdgeTypeImplements, 0.8); err != nil {
			return err
		}
	}
	return nil
}

// addEdge writes an edge with a deterministic ID so rescans upsert instead
// of accumulating duplicates.
func (s *Scanner) addEdge(source, target string, t graph.EdgeType, confidence float64) error {
	e := graph.Edge{
		ID:         fmt.Sprintf("edge:%s:%s:%s", t, source, target),
		Source:     source,
		Target:     target,
		Type:       t,
		Confidence: confidence,
	}
	if err := s.store.AddEdge(e); err != nil {
		return fmt.Errorf("scan: add edge %s->%s: %w", source, target, err)
	}
	return nil
}

// FileNodeID returns the node ID for a repo-relative file path.
func FileNodeID(relPath string) string {
	return "file:" + relPath
}

// DirNodeID returns the node ID for a repo-relative directory path.
func DirNodeID(relPath string) string {
	return "directory:" + relPath
}

// SymbolNodeID returns the node ID for a symbol declared in relPath.
func SymbolNodeID(t graph.NodeType, relPath, name string) string {
	return fmt.Sprintf("%s:%s:%s", t, relPath, name)
}

// symbolNodeType maps an extracted symbol kind to its graph node type.
func symbolNodeType(kind symbolKind) graph.NodeType {
	switch kind {
	case symbolFunction, symbolMethod:
		return graph.NodeTypeFunction
	case symbolVariable:
		return graph.NodeTypeVariable
	default:
		return graph.NodeTypeClass
	}
}
