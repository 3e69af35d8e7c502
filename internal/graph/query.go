package graph

import "strings"

// Query methods read only the relevant index, never the primary map, except
// to materialize result nodes by id.

// FindNodesByType returns every node of the given type.
func (s *Store) FindNodesByType(t NodeType) []Node {
	return s.materialize(s.structural.byType[t])
}

// FindNodeByPath returns the node indexed at exactly the given path. Paths
// are 1:1 in the structural index; use FindNodesByPath for fuzzy or partial
// path resolution.
func (s *Store) FindNodeByPath(path string) (*Node, bool) {
	id, ok := s.structural.byPath[path]
	if !ok {
		return nil, false
	}
	return s.GetNode(id)
}

// FindNodesByName returns every node whose name equals the given name,
// case-insensitively.
func (s *Store) FindNodesByName(name string) []Node {
	return s.materialize(s.structural.byName[strings.ToLower(name)])
}

// FindNodesByConfidenceRange returns every node whose confidence lies in
// [min, max]. Candidate ids come from the bucket index; exact bounds are
// checked per node.
func (s *Store) FindNodesByConfidenceRange(min, max float64) []Node {
	var out []Node
	for bucket := confidenceBucket(min); bucket <= confidenceBucket(max); bucket++ {
		for id := range s.structural.byConfidence[bucket] {
			n, ok := s.nodes[id]
			if !ok {
				continue
			}
			if n.Confidence >= min && n.Confidence <= max {
				out = append(out, n.clone())
			}
		}
	}
	return out
}

// FindNodesByFramework returns every node tagged with the given framework.
func (s *Store) FindNodesByFramework(framework string) []Node {
	return s.materialize(s.structural.byFramework[strings.ToLower(framework)])
}

// FindNodesByLanguage returns every node whose language property matches.
func (s *Store) FindNodesByLanguage(lang string) []Node {
	return s.materialize(s.structural.byLanguage[strings.ToLower(lang)])
}

// CompositeQueryOptions tunes FindNodesByCompositeQuery.
type CompositeQueryOptions struct {
	// Type restricts results to one node type and enables the stronger
	// type-scoped term matches.
	Type NodeType
	// UseSemantics adds synonym-table matches to the score.
	UseSemantics bool
}

// Per-index score contributions for composite queries. Exact token pairs are
// the strongest phrase evidence.
const (
	scoreSemanticHit        = 0.8
	scoreNamePathHit        = 0.6
	scoreTypeScoped         = 0.9
	scoreTermPairHit        = 1.0
	scoreExactPath          = 1.4
	scorePathVariant        = 1.2
	confidenceBoostPerScore = 0.1
)

// FindNodesByCompositeQuery tokenizes the query and accumulates a per-node
// score across the composite indexes, then ranks by score x confidence. The
// returned node confidence carries a boost of min(1, c*(1+score*0.1)).
func (s *Store) FindNodesByCompositeQuery(query string, opts CompositeQueryOptions) []ScoredNode {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	scores := make(map[string]float64)

	if opts.UseSemantics {
		for _, tok := range tokens {
			for id := range s.composite.semanticTerms[tok] {
				scores[id] += scoreSemanticHit
			}
		}
	}
	for _, tok := range tokens {
		for id := range s.composite.namePathTerms[tok] {
			scores[id] += scoreNamePathHit
		}
	}
	if opts.Type != "" {
		for _, tok := range tokens {
			for id := range s.composite.typeNameTerms[typeKey(opts.Type, tok)] {
				scores[id] += scoreTypeScoped
			}
			for id := range s.composite.typePathTerms[typeKey(opts.Type, tok)] {
				scores[id] += scoreTypeScoped
			}
		}
	}
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			for id := range s.composite.termCombinations[pairKey(tokens[i], tokens[j])] {
				scores[id] += scoreTermPairHit
			}
		}
	}

	results := make([]ScoredNode, 0, len(scores))
	for id, score := range scores {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		if opts.Type != "" && n.Type != opts.Type {
			continue
		}
		results = append(results, ScoredNode{Node: n.clone(), Score: score})
	}
	sortScoredByConfidence(results)

	// Boost after ranking so ordering reflects stored confidence.
	for i := range results {
		c := results[i].Node.Confidence * (1 + results[i].Score*confidenceBoostPerScore)
		if c > 1 {
			c = 1
		}
		results[i].Node.Confidence = c
	}
	return results
}

// FindNodesByPath resolves a full or partial path against the normalized
// path index. Exact normalized matches score 1.4, suffix/variant matches
// 1.2; results are ordered by score descending. Callers must treat the score
// as a ranking sentinel, not a confidence.
func (s *Store) FindNodesByPath(path string) []ScoredNode {
	canonical := normalizePath(path)
	if canonical == "" {
		return nil
	}

	scores := make(map[string]float64)
	for id := range s.composite.normalizedPaths[canonical] {
		scores[id] = scoreExactPath
	}
	for id := range s.composite.pathVariants[canonical] {
		if _, ok := scores[id]; !ok {
			scores[id] = scorePathVariant
		}
	}

	results := make([]ScoredNode, 0, len(scores))
	for id, score := range scores {
		if n, ok := s.nodes[id]; ok {
			results = append(results, ScoredNode{Node: n.clone(), Score: score})
		}
	}
	sortScoredByScore(results)
	return results
}

// FindNodesByMultipleTerms matches each term against the name/path and
// semantic term indexes. matchAll intersects the per-term candidate sets;
// otherwise they are unioned. Relevance is matchedTerms/totalTerms and
// results are ordered by relevance x confidence.
func (s *Store) FindNodesByMultipleTerms(terms []string, matchAll bool) []ScoredNode {
	if len(terms) == 0 {
		return nil
	}

	matched := make(map[string]int) // id -> number of terms matched
	for _, term := range terms {
		candidates := make(map[string]struct{})
		for _, tok := range tokenize(term) {
			for id := range s.composite.namePathTerms[tok] {
				candidates[id] = struct{}{}
			}
			for id := range s.composite.semanticTerms[tok] {
				candidates[id] = struct{}{}
			}
		}
		for id := range candidates {
			matched[id]++
		}
	}

	total := len(terms)
	results := make([]ScoredNode, 0, len(matched))
	for id, count := range matched {
		if matchAll && count < total {
			continue
		}
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		results = append(results, ScoredNode{
			Node:  n.clone(),
			Score: float64(count) / float64(total),
		})
	}
	sortScoredByConfidence(results)
	return results
}

// materialize converts an id set into node copies.
func (s *Store) materialize(ids map[string]struct{}) []Node {
	out := make([]Node, 0, len(ids))
	for id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n.clone())
		}
	}
	return out
}
