package graph

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the canonical in-memory knowledge graph: the primary node/edge
// maps plus every derived index, kept exactly consistent with each mutation.
//
// The store assumes a single logical owner. It performs no internal locking;
// producers that write concurrently (e.g. parallel scan workers) must
// serialize their writes through one goroutine.
type Store struct {
	nodes map[string]*Node
	edges map[string]*Edge

	// Adjacency indexes: node id -> set of incident edge ids.
	edgesBySource map[string]map[string]struct{}
	edgesByTarget map[string]map[string]struct{}

	structural *structuralIndex
	composite  *compositeIndex

	projectRoot string
	lastScan    time.Time

	validate *validator.Validate
	logger   *zap.Logger
}

// NewStore creates an empty Store rooted at the given project directory.
// A nil logger disables logging.
func NewStore(projectRoot string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		nodes:         make(map[string]*Node),
		edges:         make(map[string]*Edge),
		edgesBySource: make(map[string]map[string]struct{}),
		edgesByTarget: make(map[string]map[string]struct{}),
		structural:    newStructuralIndex(),
		composite:     newCompositeIndex(),
		projectRoot:   projectRoot,
		validate:      validator.New(),
		logger:        logger,
	}
}

// ProjectRoot returns the project directory this graph describes.
func (s *Store) ProjectRoot() string {
	return s.projectRoot
}

// LastScan returns the timestamp of the most recent completed scan.
func (s *Store) LastScan() time.Time {
	return s.lastScan
}

// SetLastScan records graph freshness after a scan completes.
func (s *Store) SetLastScan(t time.Time) {
	s.lastScan = t
}

// ---------- Node operations ----------

// AddNode validates and upserts a node. Re-adding an existing id overwrites
// it (last write wins); the previous value's index entries are removed before
// the new value is indexed. LastUpdated is refreshed on every write.
func (s *Store) AddNode(n Node) error {
	if err := s.validateStruct("node", n.ID, &n); err != nil {
		return err
	}

	n.LastUpdated = time.Now()
	if old, ok := s.nodes[n.ID]; ok {
		s.structural.remove(old)
		s.composite.remove(old)
		if n.CreatedAt == nil {
			n.CreatedAt = old.CreatedAt
		}
	} else if n.CreatedAt == nil {
		created := n.LastUpdated
		n.CreatedAt = &created
	}

	stored := n.clone()
	s.nodes[n.ID] = &stored
	s.structural.add(&stored)
	s.composite.add(&stored)
	return nil
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	out := n.clone()
	return &out, true
}

// RemoveNode deletes the node and every edge whose source or target is the
// node. Reports whether the node existed.
func (s *Store) RemoveNode(id string) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}

	// Cascade: collect incident edge ids first, then remove them. No
	// orphaned edge survives a node removal.
	var incident []string
	for edgeID := range s.edgesBySource[id] {
		incident = append(incident, edgeID)
	}
	for edgeID := range s.edgesByTarget[id] {
		incident = append(incident, edgeID)
	}
	for _, edgeID := range incident {
		s.RemoveEdge(edgeID)
	}

	s.structural.remove(n)
	s.composite.remove(n)
	delete(s.nodes, id)
	delete(s.edgesBySource, id)
	delete(s.edgesByTarget, id)
	return true
}

// UpdateNodeConfidence sets a node's confidence, re-indexing its confidence
// bucket and refreshing LastUpdated.
func (s *Store) UpdateNodeConfidence(id string, confidence float64) error {
	if confidence < 0 || confidence > 1 {
		return &ValidationError{Entity: "node", ID: id, Field: "confidence", Reason: "must be in range [0,1]"}
	}
	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	s.structural.remove(n)
	s.composite.remove(n)
	n.Confidence = confidence
	n.LastUpdated = time.Now()
	s.structural.add(n)
	s.composite.add(n)
	return nil
}

// ---------- Edge operations ----------

// AddEdge validates and upserts an edge. An empty id is auto-generated. Both
// endpoints must already exist; the store never admits a dangling edge
// through its public API.
func (s *Store) AddEdge(e Edge) error {
	if e.ID == "" {
		e.ID = "edge:" + uuid.NewString()
	}
	if err := s.validateStruct("edge", e.ID, &e); err != nil {
		return err
	}
	if _, ok := s.nodes[e.Source]; !ok {
		return &ValidationError{Entity: "edge", ID: e.ID, Field: "source", Reason: "references missing node " + e.Source}
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return &ValidationError{Entity: "edge", ID: e.ID, Field: "target", Reason: "references missing node " + e.Target}
	}

	e.LastUpdated = time.Now()
	if e.Created == nil {
		created := e.LastUpdated
		e.Created = &created
	}
	if old, ok := s.edges[e.ID]; ok {
		s.unindexEdge(old)
	}

	stored := e.clone()
	s.edges[e.ID] = &stored
	s.indexEdge(&stored)
	return nil
}

// GetEdge returns a copy of the edge with the given id.
func (s *Store) GetEdge(id string) (*Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	out := e.clone()
	return &out, true
}

// RemoveEdge deletes a single edge. No cascade. Reports whether the edge
// existed.
func (s *Store) RemoveEdge(id string) bool {
	e, ok := s.edges[id]
	if !ok {
		return false
	}
	s.unindexEdge(e)
	delete(s.edges, id)
	return true
}

func (s *Store) indexEdge(e *Edge) {
	addSetEntry(s.edgesBySource, e.Source, e.ID)
	addSetEntry(s.edgesByTarget, e.Target, e.ID)
}

func (s *Store) unindexEdge(e *Edge) {
	removeSetEntry(s.edgesBySource, e.Source, e.ID)
	removeSetEntry(s.edgesByTarget, e.Target, e.ID)
}

// ---------- Scans and bulk access ----------

// FindNodes returns all nodes matching the predicate, or every node when the
// predicate is nil. Arbitrary predicates are evaluated by linear scan; use
// the typed Find* lookups when the query shape matches an index.
func (s *Store) FindNodes(pred func(*Node) bool) []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if pred == nil || pred(n) {
			out = append(out, n.clone())
		}
	}
	return out
}

// FindEdges returns all edges matching the predicate, or every edge when the
// predicate is nil. Linear scan, same contract as FindNodes.
func (s *Store) FindEdges(pred func(*Edge) bool) []Edge {
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if pred == nil || pred(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// GetConnectedNodes resolves the neighbors of a node through the adjacency
// indexes in O(degree). DirectionOutgoing follows edges whose source is the
// node, DirectionIncoming edges whose target is the node.
func (s *Store) GetConnectedNodes(id string, dir Direction) []Node {
	seen := make(map[string]struct{})
	var out []Node
	appendNeighbor := func(neighborID string) {
		if _, ok := seen[neighborID]; ok {
			return
		}
		seen[neighborID] = struct{}{}
		if n, ok := s.nodes[neighborID]; ok {
			out = append(out, n.clone())
		}
	}

	if dir == DirectionOutgoing || dir == DirectionBoth {
		for edgeID := range s.edgesBySource[id] {
			if e, ok := s.edges[edgeID]; ok {
				appendNeighbor(e.Target)
			}
		}
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		for edgeID := range s.edgesByTarget[id] {
			if e, ok := s.edges[edgeID]; ok {
				appendNeighbor(e.Source)
			}
		}
	}
	return out
}

// Stats returns node/edge counts, per-type node counts, and the mean node
// confidence.
func (s *Store) Stats() GraphStats {
	stats := GraphStats{
		NodeCount:   len(s.nodes),
		EdgeCount:   len(s.edges),
		NodesByType: make(map[NodeType]int),
	}
	var sum float64
	for _, n := range s.nodes {
		stats.NodesByType[n.Type]++
		sum += n.Confidence
	}
	if stats.NodeCount > 0 {
		stats.MeanConfidence = sum / float64(stats.NodeCount)
	}
	return stats
}

// Clear drops every node, edge, and index entry, e.g. before a full rescan.
func (s *Store) Clear() {
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]*Edge)
	s.edgesBySource = make(map[string]map[string]struct{})
	s.edgesByTarget = make(map[string]map[string]struct{})
	s.structural.reset()
	s.composite.reset()
}

// rebuildIndexes reconstructs every derived index from the primary maps by
// replaying add semantics. Used after bulk load; indexes are never persisted.
func (s *Store) rebuildIndexes() {
	s.structural.reset()
	s.composite.reset()
	s.edgesBySource = make(map[string]map[string]struct{})
	s.edgesByTarget = make(map[string]map[string]struct{})
	for _, n := range s.nodes {
		s.structural.add(n)
		s.composite.add(n)
	}
	for _, e := range s.edges {
		s.indexEdge(e)
	}
}

// ---------- Validation ----------

// validateStruct runs struct-tag validation and maps the first failure into
// a *ValidationError.
func (s *Store) validateStruct(entity, id string, v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Entity: entity,
			ID:     id,
			Field:  strings.ToLower(fe.Field()),
			Reason: validationReason(fe),
		}
	}
	return err
}

// validationReason renders a human-readable reason for a field failure.
func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return "exceeds maximum length " + fe.Param()
	case "gte", "lte":
		return "must be in range [0,1]"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
