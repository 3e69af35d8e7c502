package scan

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pyExtractor extracts symbols, imports, and calls from Python source files.
// Only module-level definitions are extracted; nested helpers stay local to
// their enclosing function.
type pyExtractor struct{}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, res *fileResult) {
	cursor := root.Walk()
	defer cursor.Close()
	e.walk(cursor, source, res)
}

func (e *pyExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, res *fileResult) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_definition":
		if isPyTopLevel(node) {
			e.addNamed(node, source, res, symbolFunction)
		}

	case "class_definition":
		if isPyTopLevel(node) {
			e.addNamed(node, source, res, symbolClass)
		}

	case "import_statement":
		e.extractImport(node, source, res)

	case "import_from_statement":
		e.extractFromImport(node, source, res)

	case "call":
		extractCallee(node, source, res, "identifier", "attribute")
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, res)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, res)
		}
		cursor.GotoParent()
	}
}

func (e *pyExtractor) addNamed(node *tree_sitter.Node, source []byte, res *fileResult, kind symbolKind) {
	if sym := namedSymbol(node, source, kind); sym != nil {
		sym.Exported = !strings.HasPrefix(sym.Name, "_")
		sym.Scope = "module"
		res.Symbols = append(res.Symbols, *sym)
	}
}

// extractImport handles "import a.b, c" by emitting one specifier per
// dotted_name child.
func (e *pyExtractor) extractImport(node *tree_sitter.Node, source []byte, res *fileResult) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "dotted_name" {
			continue
		}
		if name := child.Utf8Text(source); name != "" {
			res.Imports = append(res.Imports, name)
		}
	}
}

// extractFromImport handles "from .mod import x", keeping leading dots so the
// resolver can walk parent packages.
func (e *pyExtractor) extractFromImport(node *tree_sitter.Node, source []byte, res *fileResult) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && (child.Kind() == "dotted_name" || child.Kind() == "relative_import") {
				moduleNode = child
				break
			}
		}
	}
	if moduleNode == nil {
		return
	}

	if name := moduleNode.Utf8Text(source); name != "" {
		res.Imports = append(res.Imports, name)
	}
}

// isPyTopLevel returns true if the node is at the module top level. A
// top-level node has a parent that is "module", or a parent that is
// "decorated_definition" whose own parent is "module".
func isPyTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if parent.Kind() == "module" {
		return true
	}
	if parent.Kind() == "decorated_definition" {
		grandparent := parent.Parent()
		return grandparent != nil && grandparent.Kind() == "module"
	}
	return false
}
