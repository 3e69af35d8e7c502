package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// MemoryManager bounds graph growth across repeated incremental scans with
// edge-pruning and metadata-compaction routines. It operates on the same
// single-owner store; pruning runs to completion and is not cancellable, so
// schedule it off the query-serving path for large graphs.
type MemoryManager struct {
	store  *Store
	logger *zap.Logger
}

// NewMemoryManager creates a MemoryManager over the given store. A nil
// logger disables logging.
func NewMemoryManager(store *Store, logger *zap.Logger) *MemoryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryManager{store: store, logger: logger}
}

// PruneOptions configures PruneRedundantEdges.
type PruneOptions struct {
	// Threshold is the caller's nominal confidence threshold. The weak-edge
	// detector deliberately prunes below max(0.1, Threshold-0.2), more
	// conservative than the nominal value.
	Threshold float64

	// KeepTransitive disables the transitive-edge detector. Inferring A->C
	// from A->B->C is not verified safe for every edge type, so the
	// detector stays off unless a caller opts in.
	KeepTransitive bool

	// DryRun reports candidates without mutating the graph.
	DryRun bool

	// MaxRemovalPercentage caps total removal at this share of the current
	// edge count.
	MaxRemovalPercentage float64
}

// DefaultPruneOptions returns the standard pruning configuration.
func DefaultPruneOptions() PruneOptions {
	return PruneOptions{
		Threshold:            0.5,
		KeepTransitive:       true,
		MaxRemovalPercentage: 25,
	}
}

// PruneResult reports what a pruning pass examined and removed.
type PruneResult struct {
	Examined           int              `json:"examined"`
	Candidates         []string         `json:"candidates"` // edge ids
	Removed            int              `json:"removed"`
	RemovedByType      map[EdgeType]int `json:"removedByType"`
	SafetyLimitApplied bool             `json:"safetyLimitApplied"`
	DryRun             bool             `json:"dryRun"`
}

// Per-node limits for the variable fan-out detector.
const (
	variableFanOutLimit      = 15  // outgoing edges before a variable node is considered noisy
	variableWeakConfidence   = 0.2 // outgoing edges below this are prunable
	variableMaxRemovedAbs    = 3   // hard per-node removal cap
	variableMaxRemovedShare  = 0.2 // relative per-node removal cap
	weakEdgeFloor            = 0.1 // weak-edge cutoff never drops below this
	weakEdgeThresholdMargin  = 0.2 // subtracted from the nominal threshold
	defaultMaxRemovalPercent = 25
)

// PruneRedundantEdges runs three independent redundancy detectors and
// removes the union of their candidates, subject to a global safety cap of
// MaxRemovalPercentage of the current edge count. Excess candidates are left
// untouched and SafetyLimitApplied is set.
func (m *MemoryManager) PruneRedundantEdges(opts PruneOptions) PruneResult {
	if opts.MaxRemovalPercentage <= 0 {
		opts.MaxRemovalPercentage = defaultMaxRemovalPercent
	}

	edgeCount := len(m.store.edges)
	result := PruneResult{
		Examined:      edgeCount,
		RemovedByType: make(map[EdgeType]int),
		DryRun:        opts.DryRun,
	}

	candidateSet := make(map[string]struct{})
	collect := func(ids []string) {
		for _, id := range ids {
			candidateSet[id] = struct{}{}
		}
	}

	if !opts.KeepTransitive {
		collect(m.transitiveEdgeCandidates())
	}
	collect(m.weakEdgeCandidates(opts.Threshold))
	collect(m.variableFanOutCandidates())

	candidates := make([]string, 0, len(candidateSet))
	for id := range candidateSet {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates) // deterministic across runs

	maxRemovals := int(float64(edgeCount) * opts.MaxRemovalPercentage / 100)
	if len(candidates) > maxRemovals {
		candidates = candidates[:maxRemovals]
		result.SafetyLimitApplied = true
	}
	result.Candidates = candidates

	for _, id := range candidates {
		e, ok := m.store.edges[id]
		if !ok {
			continue
		}
		result.RemovedByType[e.Type]++
		if !opts.DryRun {
			m.store.RemoveEdge(id)
			result.Removed++
		}
	}

	m.logger.Info("edge pruning pass complete",
		zap.Int("examined", result.Examined),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("removed", result.Removed),
		zap.Bool("safetyLimitApplied", result.SafetyLimitApplied),
		zap.Bool("dryRun", opts.DryRun))
	return result
}

// transitiveEdgeCandidates finds edges A->C where a two-hop path A->B->C of
// the same type exists.
func (m *MemoryManager) transitiveEdgeCandidates() []string {
	// (source, type) -> set of targets, for O(degree) two-hop checks.
	out := make(map[string]map[string]struct{})
	key := func(source string, t EdgeType) string {
		return source + "\x00" + string(t)
	}
	for _, e := range m.store.edges {
		addSetEntry(out, key(e.Source, e.Type), e.Target)
	}

	var candidates []string
	for id, e := range m.store.edges {
		for mid := range out[key(e.Source, e.Type)] {
			if mid == e.Target || mid == e.Source {
				continue
			}
			if _, ok := out[key(mid, e.Type)][e.Target]; ok {
				candidates = append(candidates, id)
				break
			}
		}
	}
	return candidates
}

// weakEdgeCandidates finds edges whose confidence falls below
// max(0.1, threshold-0.2).
func (m *MemoryManager) weakEdgeCandidates(threshold float64) []string {
	cutoff := threshold - weakEdgeThresholdMargin
	if cutoff < weakEdgeFloor {
		cutoff = weakEdgeFloor
	}
	var candidates []string
	for id, e := range m.store.edges {
		if e.Confidence < cutoff {
			candidates = append(candidates, id)
		}
	}
	return candidates
}

// variableFanOutCandidates finds variable-typed nodes with more than 15
// outgoing edges and nominates their weakest (confidence < 0.2) outgoing
// edges, capped per node at min(3, 20% of that node's edge count).
func (m *MemoryManager) variableFanOutCandidates() []string {
	var candidates []string
	for nodeID, edgeIDs := range m.store.edgesBySource {
		n, ok := m.store.nodes[nodeID]
		if !ok || n.Type != NodeTypeVariable {
			continue
		}
		if len(edgeIDs) <= variableFanOutLimit {
			continue
		}

		var weak []*Edge
		for edgeID := range edgeIDs {
			e, ok := m.store.edges[edgeID]
			if !ok {
				continue
			}
			if e.Confidence < variableWeakConfidence {
				weak = append(weak, e)
			}
		}
		sort.Slice(weak, func(i, j int) bool {
			if weak[i].Confidence != weak[j].Confidence {
				return weak[i].Confidence < weak[j].Confidence
			}
			return weak[i].ID < weak[j].ID
		})

		limit := int(float64(len(edgeIDs)) * variableMaxRemovedShare)
		if limit > variableMaxRemovedAbs {
			limit = variableMaxRemovedAbs
		}
		if len(weak) > limit {
			weak = weak[:limit]
		}
		for _, e := range weak {
			candidates = append(candidates, e.ID)
		}
	}
	return candidates
}

// --- Variable node compaction ---

// CompressOptions configures CompressVariableNodes.
type CompressOptions struct {
	// EnableLazyLoading demotes non-essential metadata keys behind a
	// lazyLoaded summary entry.
	EnableLazyLoading bool

	// DeduplicateNames reports estimated savings for variable names
	// repeated more than 5 times. No identity merge is performed.
	DeduplicateNames bool

	// DryRun reports what would change without mutating nodes.
	DryRun bool
}

// CompressResult reports the outcome of a metadata compaction pass.
type CompressResult struct {
	NodesCompressed       int            `json:"nodesCompressed"`
	KeysDemoted           int            `json:"keysDemoted"`
	BytesReclaimed        int            `json:"bytesReclaimed"` // estimated
	DuplicateNames        map[string]int `json:"duplicateNames,omitempty"`
	EstimatedDedupSavings int            `json:"estimatedDedupSavings,omitempty"` // bytes, no merge performed
	DryRun                bool           `json:"dryRun"`
}

// essentialVariableKeys are never demoted from a variable node's metadata.
var essentialVariableKeys = map[string]struct{}{
	"variableType": {},
	"lineNumber":   {},
	"scope":        {},
}

const (
	compressMetadataKeyLimit = 3
	// Demoted metadata is assumed ~70% reclaimable; the lazyLoaded summary
	// retains the rest.
	reclaimRatio = 0.7

	dedupNameRepeatLimit = 5
	// Rough per-occurrence overhead of a duplicated name: the name bytes
	// plus map-entry bookkeeping.
	dedupEntryOverhead = 24
)

// CompressVariableNodes compacts the metadata of variable nodes carrying
// more than 3 metadata keys, keeping only the essential keys and a summary
// of what was demoted. Reclaimed bytes are estimated at 70% of the removed
// entries' JSON size.
func (m *MemoryManager) CompressVariableNodes(opts CompressOptions) CompressResult {
	result := CompressResult{DryRun: opts.DryRun}

	if opts.EnableLazyLoading {
		for _, n := range m.store.nodes {
			if n.Type != NodeTypeVariable || len(n.Metadata) <= compressMetadataKeyLimit {
				continue
			}

			demoted := make(map[string]any)
			for k, v := range n.Metadata {
				if _, essential := essentialVariableKeys[k]; !essential && k != "lazyLoaded" {
					demoted[k] = v
				}
			}
			if len(demoted) == 0 {
				continue
			}

			result.NodesCompressed++
			result.KeysDemoted += len(demoted)
			if data, err := json.Marshal(demoted); err == nil {
				result.BytesReclaimed += int(float64(len(data)) * reclaimRatio)
			}

			if !opts.DryRun {
				for k := range demoted {
					delete(n.Metadata, k)
				}
				n.Metadata["lazyLoaded"] = fmt.Sprintf("%d additional properties", len(demoted))
				n.LastUpdated = time.Now()
			}
		}
	}

	if opts.DeduplicateNames {
		counts := make(map[string]int)
		for _, n := range m.store.nodes {
			if n.Type == NodeTypeVariable {
				counts[n.Name]++
			}
		}
		for name, count := range counts {
			if count <= dedupNameRepeatLimit {
				continue
			}
			if result.DuplicateNames == nil {
				result.DuplicateNames = make(map[string]int)
			}
			result.DuplicateNames[name] = count
			// Size estimate only. Merging same-named nodes would change
			// node identity referenced by edges and indexes, so it is not
			// performed.
			result.EstimatedDedupSavings += (count - 1) * (len(name) + dedupEntryOverhead)
		}
	}

	m.logger.Info("variable node compaction complete",
		zap.Int("nodesCompressed", result.NodesCompressed),
		zap.Int("keysDemoted", result.KeysDemoted),
		zap.Int("bytesReclaimed", result.BytesReclaimed),
		zap.Bool("dryRun", opts.DryRun))
	return result
}
