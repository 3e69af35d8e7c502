package scan

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// tsExtractor extracts symbols, imports, and calls from TypeScript source
// files. Arrow functions bound to const declarations are treated as
// functions; other initialized declarators become variable symbols.
type tsExtractor struct{}

func (e *tsExtractor) Extract(root *tree_sitter.Node, source []byte, res *fileResult) {
	cursor := root.Walk()
	defer cursor.Close()
	e.walk(cursor, source, res)
}

func (e *tsExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, res *fileResult) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_declaration":
		e.addNamed(node, source, res, symbolFunction)

	case "class_declaration":
		e.addNamed(node, source, res, symbolClass)

	case "interface_declaration":
		e.addNamed(node, source, res, symbolInterface)

	case "type_alias_declaration":
		e.addNamed(node, source, res, symbolType)

	case "enum_declaration":
		e.addNamed(node, source, res, symbolEnum)

	case "lexical_declaration":
		e.extractDeclarators(node, source, res)

	case "import_statement":
		e.extractImport(node, source, res)

	case "call_expression":
		extractCallee(node, source, res, "identifier", "member_expression")
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, res)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, res)
		}
		cursor.GotoParent()
	}
}

func (e *tsExtractor) addNamed(node *tree_sitter.Node, source []byte, res *fileResult, kind symbolKind) {
	if sym := namedSymbol(node, source, kind); sym != nil {
		sym.Exported = isTSExported(node)
		sym.Scope = tsScope(node)
		res.Symbols = append(res.Symbols, *sym)
	}
}

// extractDeclarators walks the variable_declarator children of a lexical
// declaration. Arrow function values become function symbols, anything else
// with an initializer becomes a variable symbol whose variable type is the
// initializer's AST kind.
func (e *tsExtractor) extractDeclarators(node *tree_sitter.Node, source []byte, res *fileResult) {
	exported := isTSExported(node)
	scope := tsScope(node)

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}

		valueNode := child.ChildByFieldName("value")
		if valueNode == nil {
			continue
		}

		kind := symbolVariable
		if valueNode.Kind() == "arrow_function" {
			kind = symbolFunction
		}

		sym := namedSymbol(child, source, kind)
		if sym == nil {
			continue
		}
		sym.Exported = exported
		sym.Scope = scope
		if kind == symbolVariable {
			sym.VariableType = valueNode.Kind()
		}
		res.Symbols = append(res.Symbols, *sym)
	}
}

func (e *tsExtractor) extractImport(node *tree_sitter.Node, source []byte, res *fileResult) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "string" {
				sourceNode = child
				break
			}
		}
	}
	if sourceNode == nil {
		return
	}

	importPath := strings.Trim(sourceNode.Utf8Text(source), "\"'`")
	if importPath != "" {
		res.Imports = append(res.Imports, importPath)
	}
}

// isTSExported checks if a node is exported by looking at whether its parent
// is an export_statement.
func isTSExported(node *tree_sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

// tsScope reports "module" for declarations at the program top level
// (directly or through an export_statement), "local" otherwise.
func tsScope(node *tree_sitter.Node) string {
	parent := node.Parent()
	if parent == nil {
		return "local"
	}
	if parent.Kind() == "export_statement" {
		parent = parent.Parent()
	}
	if parent != nil && parent.Kind() == "program" {
		return "module"
	}
	return "local"
}
