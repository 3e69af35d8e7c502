package graph

import "time"

// --- Enums ---

// NodeType classifies nodes in the knowledge graph.
type NodeType string

const (
	NodeTypeFile           NodeType = "file"
	NodeTypeDirectory      NodeType = "directory"
	NodeTypeFunction       NodeType = "function"
	NodeTypeClass          NodeType = "class"
	NodeTypeError          NodeType = "error"
	NodeTypePattern        NodeType = "pattern"
	NodeTypeDocument       NodeType = "document"
	NodeTypeLink           NodeType = "link"
	NodeTypeSection        NodeType = "section"
	NodeTypeVariable       NodeType = "variable"
	NodeTypeTypeParameter  NodeType = "type_parameter"
	NodeTypeEpisodicMemory NodeType = "episodic_memory"
	NodeTypeCallPattern    NodeType = "call_pattern"
)

// EdgeType classifies relationships between nodes.
type EdgeType string

const (
	EdgeTypeContains   EdgeType = "contains"
	EdgeTypeImports    EdgeType = "imports"
	EdgeTypeCalls      EdgeType = "calls"
	EdgeTypeFixes      EdgeType = "fixes"
	EdgeTypeRelatesTo  EdgeType = "relates_to"
	EdgeTypeDependsOn  EdgeType = "depends_on"
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeImplements EdgeType = "implements"
)

// Direction controls adjacency traversal in GetConnectedNodes.
type Direction string

const (
	DirectionIncoming Direction = "incoming" // edges whose target is the node
	DirectionOutgoing Direction = "outgoing" // edges whose source is the node
	DirectionBoth     Direction = "both"
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// Tier1Languages are languages with full scanner support (symbol extraction,
// call chains, import edges) tested in CI.
var Tier1Languages = []Language{LangGo, LangTypeScript, LangPython, LangRust}

// --- Models ---

// Node represents a single entity in the knowledge graph: a file, a symbol,
// a document, a recurring pattern, and so on. Metadata and Properties are
// open records; well-known metadata keys for variable nodes are
// "variableType", "lineNumber", and "scope". Properties commonly carry
// "language" and "framework".
type Node struct {
	ID          string         `json:"id" validate:"required,max=500"`
	Name        string         `json:"name" validate:"required,max=1000"`
	Type        NodeType       `json:"type" validate:"required"`
	Path        string         `json:"path,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Confidence  float64        `json:"confidence" validate:"gte=0,lte=1"`
	LastUpdated time.Time      `json:"lastUpdated"`
	CreatedAt   *time.Time     `json:"createdAt,omitempty"`
	Frameworks  []string       `json:"frameworks,omitempty"`
}

// Edge represents a typed directed relationship between two nodes.
type Edge struct {
	ID          string         `json:"id" validate:"required,max=500"`
	Source      string         `json:"source" validate:"required"`
	Target      string         `json:"target" validate:"required"`
	Type        EdgeType       `json:"type" validate:"required"`
	Weight      float64        `json:"weight,omitempty"`
	Confidence  float64        `json:"confidence" validate:"gte=0,lte=1"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Created     *time.Time     `json:"created,omitempty"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// GraphStats summarizes a knowledge graph.
type GraphStats struct {
	NodeCount      int              `json:"nodeCount"`
	EdgeCount      int              `json:"edgeCount"`
	NodesByType    map[NodeType]int `json:"nodesByType"`
	MeanConfidence float64          `json:"meanConfidence"`
}

// ScoredNode pairs a node with a ranking score produced by a composite or
// path query. The node's Confidence may carry a query-time boost; Score is a
// relative ranking signal, not a probability.
type ScoredNode struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// Language returns the node's language property, if set.
func (n *Node) Language() string {
	if n.Properties == nil {
		return ""
	}
	if s, ok := n.Properties["language"].(string); ok {
		return s
	}
	return ""
}

// Framework returns the node's framework property, if set.
func (n *Node) Framework() string {
	if n.Properties == nil {
		return ""
	}
	if s, ok := n.Properties["framework"].(string); ok {
		return s
	}
	return ""
}

// clone returns a copy of the node safe to hand out: maps and slices are
// copied so callers cannot mutate indexed state.
func (n *Node) clone() Node {
	out := *n
	if n.Metadata != nil {
		out.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	if n.Properties != nil {
		out.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v
		}
	}
	if n.Frameworks != nil {
		out.Frameworks = append([]string(nil), n.Frameworks...)
	}
	return out
}

// clone returns a copy of the edge with its metadata map copied.
func (e *Edge) clone() Edge {
	out := *e
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
