package scan

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

// Probe suffixes tried after an exact file-set hit fails. Index files come
// last so "./util" prefers util.ts over util/index.ts.
var (
	tsSuffixes = []string{".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.tsx", "/index.js"}
	pySuffixes = []string{".py", "/__init__.py"}
	rsSuffixes = []string{".rs", "/mod.rs"}
)

// Resolver rewrites raw import specifiers extracted by the parser into
// repo-relative file paths matching file node paths in the graph. It is built
// once per scan with the set of known file paths and any workspace metadata
// discovered in the repository root. Resolution never touches the filesystem
// after construction.
type Resolver struct {
	repoRoot     string
	fileSet      map[string]bool
	dirIndex     map[string][]string
	tsWorkspaces map[string]*tsWorkspace
	goModPath    string
}

// tsWorkspace holds metadata about a single npm/bun workspace package.
type tsWorkspace struct {
	dir            string            // repo-relative directory (e.g. "packages/db")
	mainFile       string            // default export target, repo-relative
	subpathExports map[string]string // "./queries" → "packages/db/src/queries.ts"
}

// NewResolver builds a Resolver from the repository root and the set of
// known repo-relative file paths. It scans for workspace metadata
// (package.json, go.mod) to enable package-aware resolution.
func NewResolver(repoRoot string, knownFiles []string) *Resolver {
	r := &Resolver{
		repoRoot:     repoRoot,
		fileSet:      make(map[string]bool, len(knownFiles)),
		dirIndex:     make(map[string][]string),
		tsWorkspaces: make(map[string]*tsWorkspace),
	}

	for _, f := range knownFiles {
		r.fileSet[f] = true
		dir := filepath.Dir(f)
		r.dirIndex[dir] = append(r.dirIndex[dir], f)
	}

	r.scanTSWorkspaces()
	r.scanGoMod()

	return r
}

// Resolve maps a raw import specifier from sourceFile to a repo-relative
// file path. The second return is false when the specifier points outside
// the repository (stdlib, external packages) or cannot be resolved.
func (r *Resolver) Resolve(spec, sourceFile string, lang graph.Language) (string, bool) {
	switch lang {
	case graph.LangTypeScript:
		return r.resolveTS(spec, sourceFile)
	case graph.LangGo:
		return r.resolveGo(spec)
	case graph.LangPython:
		return r.resolvePython(spec, sourceFile)
	case graph.LangRust:
		return r.resolveRust(spec, sourceFile)
	default:
		return "", false
	}
}

// probe checks basePath itself and then each suffix against the known file
// set. No filesystem I/O.
func (r *Resolver) probe(basePath string, suffixes []string) (string, bool) {
	if r.fileSet[basePath] {
		return basePath, true
	}
	for _, suffix := range suffixes {
		if candidate := basePath + suffix; r.fileSet[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// --- TypeScript resolution ---

func (r *Resolver) resolveTS(importPath, sourceFile string) (string, bool) {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		base := filepath.Clean(filepath.Join(filepath.Dir(sourceFile), importPath))
		return r.probe(base, tsSuffixes)
	}
	return r.resolveTSWorkspace(importPath)
}

func (r *Resolver) resolveTSWorkspace(importPath string) (string, bool) {
	// A whole-specifier match hits the package's default export.
	if ws, ok := r.tsWorkspaces[importPath]; ok {
		if ws.mainFile == "" {
			return "", false // workspace has no default export
		}
		return ws.mainFile, true
	}

	pkgName, subpath, ok := splitPackageSpec(importPath)
	if !ok {
		return "", false
	}
	ws, ok := r.tsWorkspaces[pkgName]
	if !ok {
		return "", false // external package
	}

	if target, ok := ws.subpathExports["./"+subpath]; ok {
		return target, true
	}

	// Undeclared subpath: probe it as a file under the workspace dir.
	return r.probe(filepath.Join(ws.dir, subpath), tsSuffixes)
}

// splitPackageSpec splits "pkg/sub/path" or "@scope/pkg/sub/path" into the
// package name and the remaining subpath. Specifiers without a subpath
// return ok=false since the whole-specifier lookup already ran.
func splitPackageSpec(importPath string) (pkgName, subpath string, ok bool) {
	nameSegments := 1
	if strings.HasPrefix(importPath, "@") {
		nameSegments = 2 // scope + package
	}

	parts := strings.SplitN(importPath, "/", nameSegments+1)
	if len(parts) <= nameSegments {
		return "", "", false
	}
	return strings.Join(parts[:nameSegments], "/"), parts[nameSegments], true
}

// --- Go resolution ---

func (r *Resolver) resolveGo(importPath string) (string, bool) {
	if r.goModPath == "" || !strings.HasPrefix(importPath, r.goModPath) {
		return "", false // stdlib or external module
	}

	relDir := strings.TrimPrefix(strings.TrimPrefix(importPath, r.goModPath), "/")
	if relDir == "" {
		relDir = "."
	}

	// A Go import names a package, not a file. Represent it by the first
	// non-test source file of the directory, in sorted order so the choice
	// is stable between scans.
	var sources []string
	for _, f := range r.dirIndex[relDir] {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			sources = append(sources, f)
		}
	}
	if len(sources) == 0 {
		return "", false
	}
	sort.Strings(sources)
	return sources[0], true
}

// --- Python resolution ---

func (r *Resolver) resolvePython(importPath, sourceFile string) (string, bool) {
	if !strings.HasPrefix(importPath, ".") {
		return "", false // absolute import (external package)
	}

	modulePart := strings.TrimLeft(importPath, ".")
	dots := len(importPath) - len(modulePart)

	// One dot = same package, each extra dot climbs a directory.
	baseDir := filepath.Dir(sourceFile)
	for i := 1; i < dots; i++ {
		baseDir = filepath.Dir(baseDir)
	}

	if modulePart == "" {
		// Bare relative import (just dots) resolves to the package itself.
		return r.probe(filepath.Join(baseDir, "__init__"), []string{".py"})
	}

	relPath := strings.ReplaceAll(modulePart, ".", "/")
	return r.probe(filepath.Join(baseDir, relPath), pySuffixes)
}

// --- Rust resolution ---

func (r *Resolver) resolveRust(importPath, sourceFile string) (string, bool) {
	// Strip use-list braces: "crate::model::{Repository, User}" → "crate::model"
	if idx := strings.Index(importPath, "::{"); idx != -1 {
		importPath = importPath[:idx]
	}

	prefix, rest, found := strings.Cut(importPath, "::")
	if !found {
		return "", false // external crate
	}
	relPath := strings.ReplaceAll(rest, "::", "/")

	var bases []string
	switch prefix {
	case "crate":
		bases = []string{filepath.Join("src", relPath), relPath}
		if srcDir := findCrateRoot(sourceFile); srcDir != "" {
			bases = append(bases, filepath.Join(srcDir, relPath))
		}
	case "self":
		bases = []string{filepath.Join(filepath.Dir(sourceFile), relPath)}
	case "super":
		bases = []string{filepath.Join(filepath.Dir(filepath.Dir(sourceFile)), relPath)}
	default:
		return "", false // external crate
	}

	for _, base := range bases {
		if resolved, ok := r.probe(base, rsSuffixes); ok {
			return resolved, true
		}
	}
	return "", false
}

// findCrateRoot walks up from a file path to find the nearest "src"
// directory, the conventional Rust crate source root.
func findCrateRoot(filePath string) string {
	for dir := filepath.Dir(filePath); dir != "." && dir != "/" && dir != ""; dir = filepath.Dir(dir) {
		if filepath.Base(dir) == "src" {
			return dir
		}
	}
	return ""
}

// --- Workspace / module scanning ---

// packageJSON is a minimal representation for reading package.json files.
type packageJSON struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Workspaces json.RawMessage `json:"workspaces"`
	Exports    json.RawMessage `json:"exports"`
}

func (r *Resolver) scanTSWorkspaces() {
	data, err := os.ReadFile(filepath.Join(r.repoRoot, "package.json"))
	if err != nil {
		return
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}

	for _, pattern := range parseWorkspacePatterns(pkg.Workspaces) {
		matches, err := filepath.Glob(filepath.Join(r.repoRoot, pattern))
		if err != nil {
			continue
		}
		for _, dir := range matches {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				r.loadWorkspacePackage(dir)
			}
		}
	}
}

// parseWorkspacePatterns accepts both forms of the workspaces field: an
// array of globs, or an object with a "packages" key.
func parseWorkspacePatterns(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Packages
	}

	return nil
}

func (r *Resolver) loadWorkspacePackage(absDir string) {
	data, err := os.ReadFile(filepath.Join(absDir, "package.json"))
	if err != nil {
		return
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return
	}

	relDir, err := filepath.Rel(r.repoRoot, absDir)
	if err != nil {
		return
	}

	ws := &tsWorkspace{
		dir:            relDir,
		subpathExports: make(map[string]string),
	}

	r.parseExports(ws, pkg.Exports)

	// Fall back to "main" when exports gave no default.
	if ws.mainFile == "" && pkg.Main != "" {
		ws.mainFile, _ = r.probe(filepath.Clean(filepath.Join(relDir, pkg.Main)), tsSuffixes)
	}

	// Last resort: index.ts / index.js in src/ or the package root.
	if ws.mainFile == "" {
		for _, base := range []string{
			filepath.Join(relDir, "src", "index"),
			filepath.Join(relDir, "index"),
		} {
			if resolved, ok := r.probe(base, tsSuffixes); ok {
				ws.mainFile = resolved
				break
			}
		}
	}

	r.tsWorkspaces[pkg.Name] = ws
}

func (r *Resolver) parseExports(ws *tsWorkspace, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	// Simple string form: "exports": "./src/index.ts"
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		ws.mainFile, _ = r.probe(filepath.Clean(filepath.Join(ws.dir, str)), tsSuffixes)
		return
	}

	// Object form: {".": "./src/index.ts", "./queries": "./src/queries.ts"}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return
	}

	for key, val := range obj {
		target := resolveExportValue(val)
		if target == "" {
			continue
		}

		resolved, ok := r.probe(filepath.Clean(filepath.Join(ws.dir, target)), tsSuffixes)
		if !ok {
			continue
		}
		if key == "." {
			ws.mainFile = resolved
		} else {
			ws.subpathExports[key] = resolved
		}
	}
}

// resolveExportValue extracts a file path from an export value, which can be
// a string or a conditional object {"import": "...", "require": "...", "default": "..."}.
func resolveExportValue(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}

	// Conditional values can themselves be strings or nested objects.
	for _, key := range []string{"import", "default", "require"} {
		if v, ok := obj[key]; ok {
			return resolveExportValue(v)
		}
	}
	return ""
}

func (r *Resolver) scanGoMod() {
	f, err := os.Open(filepath.Join(r.repoRoot, "go.mod"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			r.goModPath = strings.TrimSpace(strings.TrimPrefix(line, "module"))
			return
		}
	}
}
