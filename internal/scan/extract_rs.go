package scan

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// rsExtractor extracts symbols, imports, and calls from Rust source files.
// Trait impl blocks additionally record type/trait pairs so the scanner can
// emit implements edges once both sides are known symbols.
type rsExtractor struct{}

func (e *rsExtractor) Extract(root *tree_sitter.Node, source []byte, res *fileResult) {
	cursor := root.Walk()
	defer cursor.Close()
	e.walk(cursor, source, res)
}

func (e *rsExtractor) walk(cursor *tree_sitter.TreeCursor, source []byte, res *fileResult) {
	node := cursor.Node()

	switch node.Kind() {
	case "function_item":
		if node.Parent() == nil || node.Parent().Kind() != "declaration_list" {
			e.addNamed(node, source, res, symbolFunction)
		}

	case "struct_item", "type_item":
		e.addNamed(node, source, res, symbolType)

	case "enum_item":
		e.addNamed(node, source, res, symbolEnum)

	case "trait_item":
		e.addNamed(node, source, res, symbolInterface)

	case "impl_item":
		e.extractImpl(node, source, res)

	case "use_declaration":
		e.extractUse(node, source, res)

	case "call_expression":
		extractCallee(node, source, res, "identifier", "scoped_identifier", "field_expression")
	}

	if cursor.GotoFirstChild() {
		e.walk(cursor, source, res)
		for cursor.GotoNextSibling() {
			e.walk(cursor, source, res)
		}
		cursor.GotoParent()
	}
}

func (e *rsExtractor) addNamed(node *tree_sitter.Node, source []byte, res *fileResult, kind symbolKind) {
	if sym := namedSymbol(node, source, kind); sym != nil {
		sym.Exported = isRustPub(node)
		sym.Scope = "module"
		res.Symbols = append(res.Symbols, *sym)
	}
}

// extractImpl pulls methods out of an impl body and records trait
// implementations ("impl Trait for Type") for later edge emission.
func (e *rsExtractor) extractImpl(node *tree_sitter.Node, source []byte, res *fileResult) {
	traitNode := node.ChildByFieldName("trait")
	typeNode := node.ChildByFieldName("type")

	if traitNode != nil && typeNode != nil {
		traitName := traitNode.Utf8Text(source)
		typeName := typeNode.Utf8Text(source)
		if traitName != "" && typeName != "" {
			res.Implements = append(res.Implements, implPair{Type: typeName, Trait: traitName})
		}
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return
	}

	for i := uint(0); i < bodyNode.ChildCount(); i++ {
		child := bodyNode.Child(i)
		if child == nil || child.Kind() != "function_item" {
			continue
		}
		if sym := namedSymbol(child, source, symbolMethod); sym != nil {
			sym.Exported = isRustPub(child)
			sym.Scope = "module"
			res.Symbols = append(res.Symbols, *sym)
		}
	}
}

// extractUse records the full use path text (scoped identifiers, wildcards,
// and use lists alike); the resolver strips list braces.
func (e *rsExtractor) extractUse(node *tree_sitter.Node, source []byte, res *fileResult) {
	argNode := node.ChildByFieldName("argument")
	var importPath string
	if argNode != nil {
		importPath = argNode.Utf8Text(source)
	} else {
		importPath = node.Utf8Text(source)
	}
	if importPath != "" {
		res.Imports = append(res.Imports, importPath)
	}
}

// isRustPub checks if a node has a visibility_modifier child with "pub" text.
func isRustPub(node *tree_sitter.Node) bool {
	if node.ChildCount() == 0 {
		return false
	}
	first := node.Child(0)
	return first != nil && first.Kind() == "visibility_modifier"
}
