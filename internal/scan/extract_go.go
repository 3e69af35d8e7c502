package scan

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// goExtractor extracts symbols, imports, and calls from Go source files.
type goExtractor struct{}

func (e *goExtractor) Extract(root *tree_sitter.Node, source []byte, res *fileResult) {
	cursor := root.Walk()
	defer cursor.Close()
	e.walk(cursor, source, res)
}

func (e *goExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, res *fileResult) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_declaration":
		if sym := namedSymbol(node, source, symbolFunction); sym != nil {
			sym.Exported = isGoExported(sym.Name)
			sym.Scope = "module"
			res.Symbols = append(res.Symbols, *sym)
		}

	case "method_declaration":
		if sym := namedSymbol(node, source, symbolMethod); sym != nil {
			sym.Exported = isGoExported(sym.Name)
			sym.Scope = "module"
			res.Symbols = append(res.Symbols, *sym)
		}

	case "type_declaration":
		e.extractTypeDeclaration(node, source, res)

	case "var_declaration", "const_declaration":
		if node.Parent() != nil && node.Parent().Kind() == "source_file" {
			e.extractVarDeclaration(node, source, res)
		}

	case "import_spec":
		e.extractImport(node, source, res)

	case "call_expression":
		extractCallee(node, source, res, "identifier", "selector_expression")
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, res)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, res)
		}
		cursor.GotoParent()
	}
}

// extractTypeDeclaration handles the one-or-more type_spec children of a
// type_declaration, classifying interfaces separately from concrete types.
func (e *goExtractor) extractTypeDeclaration(node *tree_sitter.Node, source []byte, res *fileResult) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "type_spec" {
			continue
		}

		kind := symbolType
		if typeNode := child.ChildByFieldName("type"); typeNode != nil && typeNode.Kind() == "interface_type" {
			kind = symbolInterface
		}

		if sym := namedSymbol(child, source, kind); sym != nil {
			sym.Exported = isGoExported(sym.Name)
			sym.Scope = "module"
			res.Symbols = append(res.Symbols, *sym)
		}
	}
}

// extractVarDeclaration emits a variable symbol for each spec in a top-level
// var or const block. The initializer's AST kind is recorded as the variable
// type so compaction can keep it after metadata demotion.
func (e *goExtractor) extractVarDeclaration(node *tree_sitter.Node, source []byte, res *fileResult) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() != "var_spec" && child.Kind() != "const_spec" {
			continue
		}

		sym := namedSymbol(child, source, symbolVariable)
		if sym == nil {
			continue
		}
		sym.Exported = isGoExported(sym.Name)
		sym.Scope = "module"
		if valueNode := child.ChildByFieldName("value"); valueNode != nil {
			sym.VariableType = valueNode.Kind()
		}
		res.Symbols = append(res.Symbols, *sym)
	}
}

func (e *goExtractor) extractImport(node *tree_sitter.Node, source []byte, res *fileResult) {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "interpreted_string_literal" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return
	}

	importPath := strings.Trim(pathNode.Utf8Text(source), "\"")
	if importPath != "" {
		res.Imports = append(res.Imports, importPath)
	}
}

// isGoExported returns true if the first rune of name is an uppercase letter.
func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// namedSymbol builds a symbol from any node carrying a "name" field child.
// Exported and Scope are left for the caller to fill in.
func namedSymbol(node *tree_sitter.Node, source []byte, kind symbolKind) *symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Utf8Text(source)
	if name == "" {
		return nil
	}
	return &symbol{
		Name:      name,
		Kind:      kind,
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}
}

// extractCallee records a call edge when the callee is one of the accepted
// node kinds (simple identifiers and member selections only).
func extractCallee(node *tree_sitter.Node, source []byte, res *fileResult, kinds ...string) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	for _, k := range kinds {
		if fnNode.Kind() == k {
			if callee := fnNode.Utf8Text(source); callee != "" {
				res.Calls = append(res.Calls, callee)
			}
			return
		}
	}
}
