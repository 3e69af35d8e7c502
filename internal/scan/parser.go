// Package scan walks a repository, parses source files with tree-sitter, and
// feeds the extracted files, symbols, and relationships into a graph.Store.
package scan

import (
	"bytes"
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

// ExtToLanguage maps file extensions to the language used to parse them.
var ExtToLanguage = map[string]graph.Language{
	".go":  graph.LangGo,
	".ts":  graph.LangTypeScript,
	".tsx": graph.LangTypeScript,
	".py":  graph.LangPython,
	".rs":  graph.LangRust,
}

// symbolKind classifies an extracted symbol before it is mapped to a node type.
type symbolKind string

const (
	symbolFunction  symbolKind = "function"
	symbolMethod    symbolKind = "method"
	symbolClass     symbolKind = "class"
	symbolInterface symbolKind = "interface"
	symbolType      symbolKind = "type"
	symbolEnum      symbolKind = "enum"
	symbolVariable  symbolKind = "variable"
)

// symbol is a named declaration extracted from a single source file.
type symbol struct {
	Name         string
	Kind         symbolKind
	Exported     bool
	StartLine    int
	EndLine      int
	Scope        string // "module" for top-level declarations, "local" otherwise
	VariableType string // AST kind of the initializer, variables only
}

// fileResult holds everything extracted from one source file. Imports carry
// raw specifiers exactly as written; the Resolver rewrites them to
// repo-relative paths. Calls carry callee names matched against extracted
// symbols when the result is applied to the store.
type fileResult struct {
	Path       string
	Language   graph.Language
	LOC        int
	Symbols    []symbol
	Imports    []string
	Calls      []string
	Implements []implPair
}

// implPair records a trait implementation found in Rust source. Both sides
// are symbol names, matched against extracted symbols when edges are built.
type implPair struct {
	Type  string
	Trait string
}

// extractor extracts symbols, imports, and calls from a parsed AST.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, res *fileResult)
}

// Parser parses source files with tree-sitter grammars. A fresh tree-sitter
// parser is created per Parse call, so the type is safe for concurrent use.
type Parser struct {
	languages  map[graph.Language]*tree_sitter.Language
	extractors map[graph.Language]extractor
}

// NewParser creates a Parser with Go, TypeScript, Python, and Rust grammars
// registered.
func NewParser() *Parser {
	return &Parser{
		languages: map[graph.Language]*tree_sitter.Language{
			graph.LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			graph.LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			graph.LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			graph.LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		extractors: map[graph.Language]extractor{
			graph.LangGo:         &goExtractor{},
			graph.LangTypeScript: &tsExtractor{},
			graph.LangPython:     &pyExtractor{},
			graph.LangRust:       &rsExtractor{},
		},
	}
}

// Parse extracts symbols and relationships from a single source file. The
// path should be repo-relative; it becomes the Path of the resulting nodes.
func (p *Parser) Parse(_ context.Context, path string, source []byte, lang graph.Language) (*fileResult, error) {
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("scan: unsupported language: %s", lang)
	}
	ext := p.extractors[lang]

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("scan: set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("scan: tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	res := &fileResult{
		Path:     path,
		Language: lang,
		LOC:      countLOC(source),
	}
	ext.Extract(tree.RootNode(), source, res)
	return res, nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *Parser) SupportedLanguages() []graph.Language {
	langs := make([]graph.Language, 0, len(p.languages))
	for l := range p.languages {
		langs = append(langs, l)
	}
	return langs
}

// countLOC counts the number of lines in source by counting newline bytes
// and adding one for the final line if the source is non-empty.
func countLOC(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}
