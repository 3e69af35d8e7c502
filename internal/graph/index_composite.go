package graph

import (
	"sort"
	"strings"
	"unicode"
)

// compositeIndex maintains derived term-based indexes over node names and
// paths. The dominant query shape is "does this node's name or path contain
// these tokens"; these maps answer it without scanning the primary node map.
// All maps are rebuilt symmetrically (remove-old, add-new) on node update and
// removal.
type compositeIndex struct {
	namePathTerms    map[string]map[string]struct{} // token -> ids
	typeNameTerms    map[string]map[string]struct{} // "type:token" -> ids
	typePathTerms    map[string]map[string]struct{} // "type:token" -> ids
	semanticTerms    map[string]map[string]struct{} // synonym-expanded token -> ids
	normalizedPaths  map[string]map[string]struct{} // canonical path -> ids
	pathVariants     map[string]map[string]struct{} // path variant -> ids
	termCombinations map[string]map[string]struct{} // "a+b" token pair -> ids
}

func newCompositeIndex() *compositeIndex {
	return &compositeIndex{
		namePathTerms:    make(map[string]map[string]struct{}),
		typeNameTerms:    make(map[string]map[string]struct{}),
		typePathTerms:    make(map[string]map[string]struct{}),
		semanticTerms:    make(map[string]map[string]struct{}),
		normalizedPaths:  make(map[string]map[string]struct{}),
		pathVariants:     make(map[string]map[string]struct{}),
		termCombinations: make(map[string]map[string]struct{}),
	}
}

// semanticSynonyms maps a canonical term to its variants. Both directions are
// indexed: a node tokenized as "ts" is findable via "typescript" and vice
// versa.
var semanticSynonyms = map[string][]string{
	"typescript": {"ts", "tsx"},
	"javascript": {"js", "jsx"},
	"python":     {"py"},
	"golang":     {"go"},
	"rust":       {"rs"},
	"test":       {"spec", "tests", "testing"},
	"config":     {"configuration", "settings"},
	"error":      {"err", "exception", "failure"},
	"function":   {"func", "fn", "method"},
	"document":   {"doc", "docs", "documentation"},
	"util":       {"utils", "utilities", "helper", "helpers"},
	"component":  {"comp", "widget"},
	"database":   {"db", "storage", "store"},
	"interface":  {"iface", "contract"},
}

// synonymGroups maps every term (canonical or variant) to its full group.
var synonymGroups = buildSynonymGroups()

func buildSynonymGroups() map[string][]string {
	groups := make(map[string][]string, len(semanticSynonyms)*3)
	for canonical, variants := range semanticSynonyms {
		group := append([]string{canonical}, variants...)
		for _, term := range group {
			groups[term] = group
		}
	}
	return groups
}

// tokenDelimiters are the characters (besides whitespace) that split names
// and paths into tokens.
const tokenDelimiters = "-_./\\"

// tokenize splits the given strings on whitespace and delimiter characters,
// lowercases the pieces, and discards tokens of length <= 1. Each piece is
// additionally split at camelCase boundaries so "MindMapEngine" is findable
// via "mind map engine". The result is de-duplicated and order-stable.
func tokenize(parts ...string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		tok = strings.ToLower(tok)
		if len(tok) <= 1 {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	for _, part := range parts {
		fields := strings.FieldsFunc(part, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(tokenDelimiters, r)
		})
		for _, field := range fields {
			add(field)
			for _, word := range splitCamel(field) {
				add(word)
			}
		}
	}
	return tokens
}

// splitCamel splits a token at camelCase word boundaries: "MindMapEngine"
// yields ["Mind", "Map", "Engine"], "HTTPServer" yields ["HTTP", "Server"].
// Returns nil when the token has no boundary.
func splitCamel(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := (unicode.IsLower(prev) || unicode.IsDigit(prev)) && unicode.IsUpper(cur)
		if !boundary && i+1 < len(runes) {
			boundary = unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(runes[i+1])
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start == 0 {
		return nil
	}
	return append(words, string(runes[start:]))
}

// normalizePath canonicalizes a path for index lookup: backslashes become
// forward slashes, surrounding whitespace and "./" prefixes are trimmed, and
// trailing slashes are dropped.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	return p
}

// pathVariantsOf returns the lookup variants indexed for a canonical path:
// the leading-slash form, the backslash form, and every suffix after each
// "/" so partial paths like "core/foo.ts" resolve against "src/core/foo.ts".
func pathVariantsOf(canonical string) []string {
	if canonical == "" {
		return nil
	}
	variants := []string{
		"/" + canonical,
		strings.ReplaceAll(canonical, "/", "\\"),
	}
	for i, r := range canonical {
		if r == '/' && i+1 < len(canonical) {
			variants = append(variants, canonical[i+1:])
		}
	}
	return variants
}

// pairKey builds the canonical unordered key for a token pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "+" + b
}

// typeKey scopes a token to a node type.
func typeKey(t NodeType, token string) string {
	return string(t) + ":" + token
}

// semanticTermsOf computes the full set of semantic terms for a node: every
// name/path token's synonym group, plus the node's language and framework
// property values and their groups.
func semanticTermsOf(n *Node, tokens []string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.ToLower(term)
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, tok := range tokens {
		for _, syn := range synonymGroups[tok] {
			add(syn)
		}
	}
	for _, prop := range []string{n.Language(), n.Framework()} {
		if prop == "" {
			continue
		}
		add(prop)
		for _, syn := range synonymGroups[strings.ToLower(prop)] {
			add(syn)
		}
	}
	for _, fw := range n.Frameworks {
		add(fw)
	}
	return terms
}

// add indexes the node in all composite maps. The caller must have removed
// entries for any previous version first.
func (ix *compositeIndex) add(n *Node) {
	nameTokens := tokenize(n.Name)
	pathTokens := tokenize(n.Path)
	all := tokenize(n.Name, n.Path)

	for _, tok := range all {
		addSetEntry(ix.namePathTerms, tok, n.ID)
	}
	for _, tok := range nameTokens {
		addSetEntry(ix.typeNameTerms, typeKey(n.Type, tok), n.ID)
	}
	for _, tok := range pathTokens {
		addSetEntry(ix.typePathTerms, typeKey(n.Type, tok), n.ID)
	}
	for _, term := range semanticTermsOf(n, all) {
		addSetEntry(ix.semanticTerms, term, n.ID)
	}
	if canonical := normalizePath(n.Path); canonical != "" {
		addSetEntry(ix.normalizedPaths, canonical, n.ID)
		for _, variant := range pathVariantsOf(canonical) {
			addSetEntry(ix.pathVariants, variant, n.ID)
		}
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			addSetEntry(ix.termCombinations, pairKey(all[i], all[j]), n.ID)
		}
	}
}

// remove drops the node from all composite maps. The node must be the exact
// value that was indexed.
func (ix *compositeIndex) remove(n *Node) {
	nameTokens := tokenize(n.Name)
	pathTokens := tokenize(n.Path)
	all := tokenize(n.Name, n.Path)

	for _, tok := range all {
		removeSetEntry(ix.namePathTerms, tok, n.ID)
	}
	for _, tok := range nameTokens {
		removeSetEntry(ix.typeNameTerms, typeKey(n.Type, tok), n.ID)
	}
	for _, tok := range pathTokens {
		removeSetEntry(ix.typePathTerms, typeKey(n.Type, tok), n.ID)
	}
	for _, term := range semanticTermsOf(n, all) {
		removeSetEntry(ix.semanticTerms, term, n.ID)
	}
	if canonical := normalizePath(n.Path); canonical != "" {
		removeSetEntry(ix.normalizedPaths, canonical, n.ID)
		for _, variant := range pathVariantsOf(canonical) {
			removeSetEntry(ix.pathVariants, variant, n.ID)
		}
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			removeSetEntry(ix.termCombinations, pairKey(all[i], all[j]), n.ID)
		}
	}
}

// reset clears every map.
func (ix *compositeIndex) reset() {
	*ix = *newCompositeIndex()
}

// sortScoredByConfidence orders scored nodes by score x confidence,
// descending, with id as the deterministic tiebreak.
func sortScoredByConfidence(results []ScoredNode) {
	sort.Slice(results, func(i, j int) bool {
		a := results[i].Score * results[i].Node.Confidence
		b := results[j].Score * results[j].Node.Confidence
		if a != b {
			return a > b
		}
		return results[i].Node.ID < results[j].Node.ID
	})
}

// sortScoredByScore orders by the ranking sentinel alone, confidence as
// tiebreak. Path queries use this so an exact match always outranks a
// variant match regardless of stored confidence.
func sortScoredByScore(results []ScoredNode) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Node.Confidence != results[j].Node.Confidence {
			return results[i].Node.Confidence > results[j].Node.Confidence
		}
		return results[i].Node.ID < results[j].Node.ID
	})
}
