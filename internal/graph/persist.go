package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// compactVersion tags documents written by the compact codec.
const compactVersion = "2"

// --- Compact document shape ---
//
// The writer always emits this shape: single-letter top-level keys, node and
// edge tuples with abbreviated fields, enum-coded types, a deduplicated path
// dictionary, and epoch-millisecond timestamps. No pretty-printing.

type compactDocument struct {
	V     string        `json:"v"`
	S     int64         `json:"s,omitempty"` // lastScan, epoch ms
	P     string        `json:"p,omitempty"` // projectRoot
	Paths []string      `json:"paths"`
	N     []compactNode `json:"n"`
	E     []compactEdge `json:"e"`
}

type compactNode struct {
	I  string         `json:"i"`            // id
	M  string         `json:"m"`            // name
	T  int            `json:"t"`            // node type code
	TS string         `json:"ts,omitempty"` // raw type when code is -1
	P  *int           `json:"p,omitempty"`  // path dictionary index
	C  float64        `json:"c"`            // confidence, 2 decimals
	U  int64          `json:"u"`            // lastUpdated, epoch ms
	A  int64          `json:"a,omitempty"`  // createdAt, epoch ms
	D  map[string]any `json:"d,omitempty"`  // metadata, abbreviated keys
	R  map[string]any `json:"r,omitempty"`  // properties, abbreviated keys
	F  []string       `json:"f,omitempty"`  // frameworks
}

type compactEdge struct {
	I  string         `json:"i"`
	S  string         `json:"s"`            // source id
	T  string         `json:"t"`            // target id
	K  int            `json:"k"`            // edge type code
	KS string         `json:"ks,omitempty"` // raw type when code is -1
	W  float64        `json:"w,omitempty"`
	C  float64        `json:"c"`
	U  int64          `json:"u"`
	A  int64          `json:"a,omitempty"` // created, epoch ms
	D  map[string]any `json:"d,omitempty"`
}

// --- Enum and abbreviation tables ---

var nodeTypeCodes = map[NodeType]int{
	NodeTypeFile:           0,
	NodeTypeDirectory:      1,
	NodeTypeFunction:       2,
	NodeTypeClass:          3,
	NodeTypeError:          4,
	NodeTypePattern:        5,
	NodeTypeDocument:       6,
	NodeTypeLink:           7,
	NodeTypeSection:        8,
	NodeTypeVariable:       9,
	NodeTypeTypeParameter:  10,
	NodeTypeEpisodicMemory: 11,
	NodeTypeCallPattern:    12,
}

var edgeTypeCodes = map[EdgeType]int{
	EdgeTypeContains:   0,
	EdgeTypeImports:    1,
	EdgeTypeCalls:      2,
	EdgeTypeFixes:      3,
	EdgeTypeRelatesTo:  4,
	EdgeTypeDependsOn:  5,
	EdgeTypeReferences: 6,
	EdgeTypeImplements: 7,
}

var nodeTypeFromCode = invertNodeCodes()
var edgeTypeFromCode = invertEdgeCodes()

func invertNodeCodes() map[int]NodeType {
	m := make(map[int]NodeType, len(nodeTypeCodes))
	for t, c := range nodeTypeCodes {
		m[c] = t
	}
	return m
}

func invertEdgeCodes() map[int]EdgeType {
	m := make(map[int]EdgeType, len(edgeTypeCodes))
	for t, c := range edgeTypeCodes {
		m[c] = t
	}
	return m
}

// metaKeyAbbrev maps well-known metadata/property keys to their compact
// spellings. Unknown keys pass through verbatim.
var metaKeyAbbrev = map[string]string{
	"variableType": "vt",
	"lineNumber":   "ln",
	"endLine":      "el",
	"scope":        "sc",
	"filePath":     "fp",
	"language":     "lg",
	"framework":    "fw",
	"exported":     "ex",
	"signature":    "sg",
	"docstring":    "ds",
	"lazyLoaded":   "ll",
	"memberCount":  "mc",
	"cohesion":     "ch",
}

var metaKeyExpand = invertAbbrev()

func invertAbbrev() map[string]string {
	m := make(map[string]string, len(metaKeyAbbrev))
	for k, v := range metaKeyAbbrev {
		m[v] = k
	}
	return m
}

func abbreviateKeys(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if short, ok := metaKeyAbbrev[k]; ok {
			k = short
		}
		out[k] = v
	}
	return out
}

func expandKeys(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if long, ok := metaKeyExpand[k]; ok {
			k = long
		}
		out[k] = v
	}
	return out
}

// roundConfidence rounds to 2 decimals, the persisted precision.
func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

// --- Encoding ---

// encodeCompact walks the primary maps into a compact document.
func (s *Store) encodeCompact() *compactDocument {
	doc := &compactDocument{
		V:     compactVersion,
		P:     s.projectRoot,
		Paths: []string{},
		N:     make([]compactNode, 0, len(s.nodes)),
		E:     make([]compactEdge, 0, len(s.edges)),
	}
	if !s.lastScan.IsZero() {
		doc.S = s.lastScan.UnixMilli()
	}

	pathIndex := make(map[string]int)
	internPath := func(p string) *int {
		if p == "" {
			return nil
		}
		idx, ok := pathIndex[p]
		if !ok {
			idx = len(doc.Paths)
			pathIndex[p] = idx
			doc.Paths = append(doc.Paths, p)
		}
		out := idx
		return &out
	}

	for _, n := range s.nodes {
		cn := compactNode{
			I: n.ID,
			M: n.Name,
			P: internPath(n.Path),
			C: roundConfidence(n.Confidence),
			U: n.LastUpdated.UnixMilli(),
			D: abbreviateKeys(n.Metadata),
			R: abbreviateKeys(n.Properties),
			F: n.Frameworks,
		}
		if code, ok := nodeTypeCodes[n.Type]; ok {
			cn.T = code
		} else {
			cn.T = -1
			cn.TS = string(n.Type)
		}
		if n.CreatedAt != nil {
			cn.A = n.CreatedAt.UnixMilli()
		}
		doc.N = append(doc.N, cn)
	}

	for _, e := range s.edges {
		ce := compactEdge{
			I: e.ID,
			S: e.Source,
			T: e.Target,
			W: e.Weight,
			C: roundConfidence(e.Confidence),
			U: e.LastUpdated.UnixMilli(),
			D: abbreviateKeys(e.Metadata),
		}
		if code, ok := edgeTypeCodes[e.Type]; ok {
			ce.K = code
		} else {
			ce.K = -1
			ce.KS = string(e.Type)
		}
		if e.Created != nil {
			ce.A = e.Created.UnixMilli()
		}
		doc.E = append(doc.E, ce)
	}

	return doc
}

// marshalGraph serializes the graph in the compact format.
func (s *Store) marshalGraph() ([]byte, error) {
	data, err := json.Marshal(s.encodeCompact())
	if err != nil {
		return nil, fmt.Errorf("graph: encode: %w", err)
	}
	return data, nil
}

// Save writes the graph to the given file in the compact format. Failures
// are logged, never returned: a lost save must not crash the host process.
// Callers needing stricter guarantees should check the file themselves.
func (s *Store) Save(file string) {
	data, err := s.marshalGraph()
	if err != nil {
		s.logger.Error("graph save failed", zap.String("file", file), zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		s.logger.Error("graph save failed", zap.String("file", file), zap.Error(err))
		return
	}
	// Write-then-rename so a crash mid-save never truncates the previous
	// document.
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("graph save failed", zap.String("file", file), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, file); err != nil {
		s.logger.Error("graph save failed", zap.String("file", file), zap.Error(err))
		return
	}
	s.logger.Debug("graph saved",
		zap.String("file", file),
		zap.Int("nodes", len(s.nodes)),
		zap.Int("edges", len(s.edges)),
		zap.Int("bytes", len(data)))
}

// --- Decoding ---

// Load reads the graph from the given file, sniffing the format. A missing
// file is a normal first run. Any other I/O or parse failure resets the
// store to empty rather than surfacing partial state.
func (s *Store) Load(file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no graph file, starting fresh", zap.String("file", file))
			return
		}
		s.logger.Warn("graph load failed, starting fresh", zap.String("file", file), zap.Error(err))
		s.Clear()
		s.lastScan = time.Time{}
		return
	}
	if err := s.unmarshalGraph(data); err != nil {
		s.logger.Warn("graph load failed, starting fresh", zap.String("file", file), zap.Error(err))
		s.Clear()
		s.lastScan = time.Time{}
		return
	}
	s.logger.Debug("graph loaded",
		zap.String("file", file),
		zap.Int("nodes", len(s.nodes)),
		zap.Int("edges", len(s.edges)))
}

// unmarshalGraph sniffs the document shape and decodes it, replacing the
// store's contents. Every index is rebuilt from scratch afterwards; indexes
// are never persisted.
func (s *Store) unmarshalGraph(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("graph: parse: %w", err)
	}

	s.Clear()

	switch {
	case hasKey(top, "paths") && hasKey(top, "n"):
		if err := s.decodeCompact(data); err != nil {
			return err
		}
	case hasKey(top, "nodes"):
		if err := s.decodeLegacy(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("graph: unrecognized document shape")
	}

	s.dropDanglingEdges()
	s.rebuildIndexes()
	return nil
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// dropDanglingEdges removes edges whose endpoints were not present in the
// decoded document. Dangling edges are permitted only transiently during
// bulk load.
func (s *Store) dropDanglingEdges() {
	var dropped int
	for id, e := range s.edges {
		if _, ok := s.nodes[e.Source]; !ok {
			delete(s.edges, id)
			dropped++
			continue
		}
		if _, ok := s.nodes[e.Target]; !ok {
			delete(s.edges, id)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Warn("dropped dangling edges during load", zap.Int("count", dropped))
	}
}

func (s *Store) decodeCompact(data []byte) error {
	var doc compactDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("graph: decode compact: %w", err)
	}

	if doc.P != "" {
		s.projectRoot = doc.P
	}
	if doc.S != 0 {
		s.lastScan = time.UnixMilli(doc.S)
	}

	for _, cn := range doc.N {
		n := &Node{
			ID:          cn.I,
			Name:        cn.M,
			Confidence:  cn.C,
			LastUpdated: time.UnixMilli(cn.U),
			Metadata:    expandKeys(cn.D),
			Properties:  expandKeys(cn.R),
			Frameworks:  cn.F,
		}
		if cn.T == -1 {
			n.Type = NodeType(cn.TS)
		} else {
			t, ok := nodeTypeFromCode[cn.T]
			if !ok {
				return fmt.Errorf("graph: decode compact: unknown node type code %d", cn.T)
			}
			n.Type = t
		}
		if cn.P != nil {
			if *cn.P < 0 || *cn.P >= len(doc.Paths) {
				return fmt.Errorf("graph: decode compact: path index %d out of range", *cn.P)
			}
			n.Path = doc.Paths[*cn.P]
		}
		if cn.A != 0 {
			created := time.UnixMilli(cn.A)
			n.CreatedAt = &created
		}
		s.nodes[n.ID] = n
	}

	for _, ce := range doc.E {
		e := &Edge{
			ID:          ce.I,
			Source:      ce.S,
			Target:      ce.T,
			Weight:      ce.W,
			Confidence:  ce.C,
			LastUpdated: time.UnixMilli(ce.U),
			Metadata:    expandKeys(ce.D),
		}
		if ce.K == -1 {
			e.Type = EdgeType(ce.KS)
		} else {
			t, ok := edgeTypeFromCode[ce.K]
			if !ok {
				return fmt.Errorf("graph: decode compact: unknown edge type code %d", ce.K)
			}
			e.Type = t
		}
		if ce.A != 0 {
			created := time.UnixMilli(ce.A)
			e.Created = &created
		}
		s.edges[e.ID] = e
	}

	return nil
}

// --- Legacy format ---
//
// The legacy writer used verbose field names, ISO date strings, and
// array-of-pairs encodings for the node and edge maps:
//
//	{"nodes": [["id", {...}], ...], "edges": [["id", {...}], ...],
//	 "projectRoot": "...", "lastScan": "ISO", "version": 1}
//
// It is read transparently; saving always rewrites in the compact format.

type legacyDocument struct {
	Nodes       []legacyNodePair `json:"nodes"`
	Edges       []legacyEdgePair `json:"edges"`
	ProjectRoot string           `json:"projectRoot"`
	LastScan    string           `json:"lastScan"`
	Version     any              `json:"version"`
}

type legacyNodePair struct {
	ID   string
	Node legacyNode
}

type legacyEdgePair struct {
	ID   string
	Edge legacyEdge
}

// UnmarshalJSON decodes the ["id", {...}] pair shape.
func (p *legacyNodePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("graph: legacy node pair has %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Node)
}

func (p *legacyEdgePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("graph: legacy edge pair has %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Edge)
}

type legacyNode struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Path        string         `json:"path"`
	Metadata    map[string]any `json:"metadata"`
	Properties  map[string]any `json:"properties"`
	Confidence  float64        `json:"confidence"`
	LastUpdated string         `json:"lastUpdated"`
	CreatedAt   string         `json:"createdAt"`
	Frameworks  []string       `json:"frameworks"`
}

type legacyEdge struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Target      string         `json:"target"`
	Type        string         `json:"type"`
	Weight      float64        `json:"weight"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"metadata"`
	Created     string         `json:"created"`
	LastUpdated string         `json:"lastUpdated"`
}

// parseLegacyTime parses an ISO date string; the zero time on failure.
func parseLegacyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *Store) decodeLegacy(data []byte) error {
	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("graph: decode legacy: %w", err)
	}

	if doc.ProjectRoot != "" {
		s.projectRoot = doc.ProjectRoot
	}
	if t := parseLegacyTime(doc.LastScan); !t.IsZero() {
		s.lastScan = t
	}

	now := time.Now()
	for _, pair := range doc.Nodes {
		ln := pair.Node
		id := pair.ID
		if id == "" {
			id = ln.ID
		}
		n := &Node{
			ID:         id,
			Name:       ln.Name,
			Type:       NodeType(ln.Type),
			Path:       s.relativizeLegacyPath(ln.Path),
			Metadata:   ln.Metadata,
			Properties: ln.Properties,
			Confidence: ln.Confidence,
			Frameworks: ln.Frameworks,
		}
		// Legacy documents may predate the lastUpdated field.
		if t := parseLegacyTime(ln.LastUpdated); !t.IsZero() {
			n.LastUpdated = t
		} else {
			n.LastUpdated = now
		}
		if t := parseLegacyTime(ln.CreatedAt); !t.IsZero() {
			n.CreatedAt = &t
		}
		s.nodes[n.ID] = n
	}

	for _, pair := range doc.Edges {
		le := pair.Edge
		id := pair.ID
		if id == "" {
			id = le.ID
		}
		e := &Edge{
			ID:         id,
			Source:     le.Source,
			Target:     le.Target,
			Type:       EdgeType(le.Type),
			Weight:     le.Weight,
			Confidence: le.Confidence,
			Metadata:   le.Metadata,
		}
		if t := parseLegacyTime(le.LastUpdated); !t.IsZero() {
			e.LastUpdated = t
		} else {
			e.LastUpdated = now
		}
		if t := parseLegacyTime(le.Created); !t.IsZero() {
			e.Created = &t
		}
		s.edges[e.ID] = e
	}

	return nil
}

// relativizeLegacyPath normalizes legacy absolute paths under the project
// root into the repo-relative form used throughout the store.
func (s *Store) relativizeLegacyPath(p string) string {
	if p == "" || s.projectRoot == "" {
		return p
	}
	prefix := strings.TrimSuffix(s.projectRoot, "/") + "/"
	if strings.HasPrefix(p, prefix) {
		return strings.TrimPrefix(p, prefix)
	}
	return p
}
