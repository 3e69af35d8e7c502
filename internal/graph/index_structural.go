package graph

import "strings"

// confidenceBuckets is the number of coarse confidence ranges indexed by
// structuralIndex. Bucket = floor(confidence * 5), with 1.0 clamped into the
// top bucket.
const confidenceBuckets = 5

// structuralIndex maintains six single-field lookup maps over nodes. It is
// kept transactionally consistent with the store's primary node map: every
// mutation removes the old value's entries before adding the new value's.
type structuralIndex struct {
	byType       map[NodeType]map[string]struct{}
	byPath       map[string]string // path -> id, 1:1
	byName       map[string]map[string]struct{}
	byConfidence map[int]map[string]struct{}
	byFramework  map[string]map[string]struct{}
	byLanguage   map[string]map[string]struct{}
}

func newStructuralIndex() *structuralIndex {
	return &structuralIndex{
		byType:       make(map[NodeType]map[string]struct{}),
		byPath:       make(map[string]string),
		byName:       make(map[string]map[string]struct{}),
		byConfidence: make(map[int]map[string]struct{}),
		byFramework:  make(map[string]map[string]struct{}),
		byLanguage:   make(map[string]map[string]struct{}),
	}
}

// confidenceBucket maps a confidence value in [0,1] to its index bucket.
func confidenceBucket(c float64) int {
	b := int(c * confidenceBuckets)
	if b >= confidenceBuckets {
		b = confidenceBuckets - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

// add indexes the node under every applicable map. The caller must have
// removed entries for any previous version of the node first.
func (ix *structuralIndex) add(n *Node) {
	typeSet, ok := ix.byType[n.Type]
	if !ok {
		typeSet = make(map[string]struct{})
		ix.byType[n.Type] = typeSet
	}
	typeSet[n.ID] = struct{}{}
	if n.Path != "" {
		ix.byPath[n.Path] = n.ID
	}
	if n.Name != "" {
		addSetEntry(ix.byName, strings.ToLower(n.Name), n.ID)
	}
	addIntSetEntry(ix.byConfidence, confidenceBucket(n.Confidence), n.ID)
	for _, fw := range n.Frameworks {
		addSetEntry(ix.byFramework, strings.ToLower(fw), n.ID)
	}
	if fw := n.Framework(); fw != "" {
		addSetEntry(ix.byFramework, strings.ToLower(fw), n.ID)
	}
	if lang := n.Language(); lang != "" {
		addSetEntry(ix.byLanguage, strings.ToLower(lang), n.ID)
	}
}

// remove drops the node from every applicable map. The node must be the
// exact value that was indexed (same path, name, confidence), not a newer
// version.
func (ix *structuralIndex) remove(n *Node) {
	if typeSet, ok := ix.byType[n.Type]; ok {
		delete(typeSet, n.ID)
		if len(typeSet) == 0 {
			delete(ix.byType, n.Type)
		}
	}
	if n.Path != "" && ix.byPath[n.Path] == n.ID {
		delete(ix.byPath, n.Path)
	}
	if n.Name != "" {
		removeSetEntry(ix.byName, strings.ToLower(n.Name), n.ID)
	}
	removeIntSetEntry(ix.byConfidence, confidenceBucket(n.Confidence), n.ID)
	for _, fw := range n.Frameworks {
		removeSetEntry(ix.byFramework, strings.ToLower(fw), n.ID)
	}
	if fw := n.Framework(); fw != "" {
		removeSetEntry(ix.byFramework, strings.ToLower(fw), n.ID)
	}
	if lang := n.Language(); lang != "" {
		removeSetEntry(ix.byLanguage, strings.ToLower(lang), n.ID)
	}
}

// reset clears every map.
func (ix *structuralIndex) reset() {
	*ix = *newStructuralIndex()
}

// --- set helpers ---

func addSetEntry(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func removeSetEntry(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}

func addIntSetEntry(m map[int]map[string]struct{}, key int, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func removeIntSetEntry(m map[int]map[string]struct{}, key int, id string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}
