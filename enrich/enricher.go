// Package enrich post-processes an ingested knowledge graph: merging
// duplicate entities, linking code to the documentation that describes it,
// inferring semantic relations from naming, and attaching orphaned nodes.
// Proposed links accumulate in the enricher and only land in the graph when
// Save is called, so a run can be inspected before it takes effect.
package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tracewire/inventorygraph/graph"
	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/taxonomy"
)

// EnricherToolkit tags relations added by enrichment so they can be told
// apart from extracted ones.
const EnricherToolkit = "enricher"

// Link is a proposed relation, pending until Save.
type Link struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Type     string  `json:"relation_type"`
	Score    float64 `json:"score,omitempty"`
}

// Enricher runs enrichment passes over a knowledge graph.
type Enricher struct {
	graph  *graph.KnowledgeGraph
	policy taxonomy.Policy
	logger log.Logger

	newLinks []Link
	queued   map[string]bool
	stats    map[string]int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Enricher) { e.logger = logger }
}

// New creates an Enricher over a graph, inheriting its taxonomy policy.
func New(g *graph.KnowledgeGraph, opts ...Option) *Enricher {
	e := &Enricher{
		graph:  g,
		policy: g.Policy(),
		logger: log.Default(),
		queued: make(map[string]bool),
		stats:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DedupOptions control entity deduplication.
type DedupOptions struct {
	// RequireExactMatch limits merging to entities whose normalized names are
	// identical. Disabling it also matches names that differ only in
	// separators or a plural suffix.
	RequireExactMatch bool
}

// DefaultDedupOptions returns the conservative defaults.
func DefaultDedupOptions() DedupOptions {
	return DedupOptions{RequireExactMatch: true}
}

// DeduplicateEntities merges same-named entities whose types the policy
// allows to merge. The entity with the higher type priority survives and
// absorbs the other's citations and relations. Returns the merge count.
func (e *Enricher) DeduplicateEntities(opts DedupOptions) int {
	groups := make(map[string][]*graph.Entity)
	for _, entity := range e.graph.Entities() {
		key := dedupKey(entity.Name, !opts.RequireExactMatch)
		groups[key] = append(groups[key], entity)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := 0
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		merged += e.mergeGroup(group)
	}

	e.stats["entities_merged"] += merged
	if merged > 0 {
		e.logger.Info("deduplication merged %d entities", merged)
	}
	return merged
}

// mergeGroup repeatedly merges mergeable pairs within one name group.
func (e *Enricher) mergeGroup(group []*graph.Entity) int {
	dropped := make(map[string]bool)
	merged := 0
	for i := 0; i < len(group); i++ {
		if dropped[group[i].ID] {
			continue
		}
		for j := i + 1; j < len(group); j++ {
			if dropped[group[j].ID] {
				continue
			}
			a, b := group[i], group[j]
			if !e.policy.CanDeduplicate(a.Type) || !e.policy.CanDeduplicate(b.Type) {
				continue
			}
			if !e.policy.Mergeable(a.Type, b.Type) {
				e.logger.Debug("not merging %q: types %s and %s are protected", a.Name, a.Type, b.Type)
				continue
			}

			keep, drop := a, b
			if e.policy.TypePriority[b.Type] > e.policy.TypePriority[a.Type] {
				keep, drop = b, a
			}
			if e.graph.MergeEntities(keep.ID, drop.ID, e.policy.MergedType(a.Type, b.Type)) {
				dropped[drop.ID] = true
				merged++
			}
		}
	}
	return merged
}

// crossLayerRelations picks the relation type for a (code type, documentation
// type) pair. Pairs not listed fall back to related_to.
var crossLayerRelations = map[[2]string]string{
	{"class", "concept"}:              "implements",
	{"struct", "concept"}:             "implements",
	{"interface", "concept"}:          "implements",
	{"class", "requirement"}:          "implements_requirement",
	{"function", "requirement"}:       "implements_requirement",
	{"method", "requirement"}:         "implements_requirement",
	{"api_endpoint", "requirement"}:   "implements_requirement",
	{"class", "feature"}:              "implements_requirement",
	{"function", "feature"}:           "implements_requirement",
	{"class", "user_story"}:           "implements_requirement",
	{"function", "business_rule"}:     "implements",
	{"test_case", "requirement"}:      "verifies",
	{"test_suite", "requirement"}:     "verifies",
}

// CrossSourceLinks proposes links between code entities and product or
// domain entities that share a name: the class implementing the concept a
// design document describes. Only name groups observed by at least two
// distinct source toolkits are considered. Returns the number of links
// queued.
func (e *Enricher) CrossSourceLinks() int {
	byName := make(map[string][]*graph.Entity)
	for _, entity := range e.graph.Entities() {
		byName[strings.ToLower(entity.Name)] = append(byName[strings.ToLower(entity.Name)], entity)
	}

	queued := 0
	for _, group := range byName {
		if len(group) < 2 || !spansSources(group) {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := 0; j < len(group); j++ {
				code, doc := group[i], group[j]
				if code.Layer != taxonomy.LayerCode {
					continue
				}
				if doc.Layer != taxonomy.LayerProduct && doc.Layer != taxonomy.LayerDomain {
					continue
				}
				relType, ok := crossLayerRelations[[2]string{code.Type, doc.Type}]
				if !ok {
					relType = taxonomy.RelatedTo
				}
				if e.queueLink(code.ID, doc.ID, relType, 1.0) {
					queued++
				}
			}
		}
	}

	e.stats["cross_source_links"] += queued
	return queued
}

// SemanticLinks proposes relations from name token overlap: an entity whose
// name tokens are a superset of another's is part_of it, high-overlap pairs
// are related_to. minOverlap is the smallest shared token count considered
// (default 1 when <= 0); maxPerEntity bounds proposals per source entity
// (default 3 when <= 0). Returns the number of links queued.
func (e *Enricher) SemanticLinks(minOverlap, maxPerEntity int) int {
	if minOverlap <= 0 {
		minOverlap = 1
	}
	if maxPerEntity <= 0 {
		maxPerEntity = 3
	}

	entities := e.graph.Entities()
	tokens := make([]map[string]bool, len(entities))
	for i, entity := range entities {
		tokens[i] = tokenSet(graph.Tokenize(entity.Name))
	}

	queued := 0
	for i, a := range entities {
		budget := maxPerEntity
		for j, b := range entities {
			if i == j || budget == 0 {
				continue
			}
			if strings.EqualFold(a.Name, b.Name) {
				continue
			}
			overlap := intersection(tokens[i], tokens[j])
			if overlap < minOverlap {
				continue
			}

			var relType string
			var score float64
			switch {
			case overlap == len(tokens[j]) && len(tokens[i]) > len(tokens[j]):
				// a's name contains all of b's tokens: a is the more
				// specific entity.
				relType = "part_of"
				score = float64(overlap) / float64(len(tokens[i]))
			case jaccard(tokens[i], tokens[j]) >= 0.5:
				relType = taxonomy.RelatedTo
				score = jaccard(tokens[i], tokens[j])
			default:
				continue
			}

			if e.queueLink(a.ID, b.ID, relType, score) {
				queued++
				budget--
			}
		}
	}

	e.stats["semantic_links"] += queued
	return queued
}

// OrphanLinks attaches entities that have no relations to their most similar
// neighbor when the combined similarity clears the threshold (default 0.3
// when <= 0). Returns the number of links queued.
func (e *Enricher) OrphanLinks(threshold float64) int {
	if threshold <= 0 {
		threshold = 0.3
	}

	entities := e.graph.Entities()
	queued := 0
	for _, orphan := range entities {
		if len(e.graph.Relations(orphan.ID, graph.DirectionBoth)) > 0 {
			continue
		}

		var best *graph.Entity
		bestScore := 0.0
		orphanTokens := tokenSet(graph.Tokenize(orphan.Name))
		for _, candidate := range entities {
			if candidate.ID == orphan.ID {
				continue
			}
			score := 0.7 * jaccard(orphanTokens, tokenSet(graph.Tokenize(candidate.Name)))
			if sharesFile(orphan, candidate) {
				score += 0.3
			}
			if score > bestScore {
				best, bestScore = candidate, score
			}
		}

		if best != nil && bestScore >= threshold {
			if e.queueLink(orphan.ID, best.ID, taxonomy.RelatedTo, bestScore) {
				queued++
			}
		}
	}

	e.stats["orphan_links"] += queued
	return queued
}

// SimilarityLinks proposes similar_to links between near-identically named
// entities of the same type. Opt-in; threshold defaults to 0.9 when <= 0.
// Returns the number of links queued.
func (e *Enricher) SimilarityLinks(threshold float64) int {
	if threshold <= 0 {
		threshold = 0.9
	}

	entities := e.graph.Entities()
	queued := 0
	for i, a := range entities {
		aTokens := tokenSet(graph.Tokenize(a.Name))
		for _, b := range entities[i+1:] {
			if a.Type != b.Type || strings.EqualFold(a.Name, b.Name) {
				continue
			}
			score := jaccard(aTokens, tokenSet(graph.Tokenize(b.Name)))
			if score >= threshold && e.queueLink(a.ID, b.ID, "similar_to", score) {
				queued++
			}
		}
	}

	e.stats["similarity_links"] += queued
	return queued
}

// EnrichAll runs the standard passes in order: deduplication first so links
// attach to survivors, then cross-source, semantic and orphan linking.
func (e *Enricher) EnrichAll(dedup DedupOptions) {
	e.DeduplicateEntities(dedup)
	e.CrossSourceLinks()
	e.SemanticLinks(0, 0)
	e.OrphanLinks(0)
}

// NewLinks returns the pending proposed links.
func (e *Enricher) NewLinks() []Link {
	out := make([]Link, len(e.newLinks))
	copy(out, e.newLinks)
	return out
}

// Stats returns counts per enrichment pass.
func (e *Enricher) Stats() map[string]int {
	out := make(map[string]int, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

// Save applies the pending links to the graph, records enrichment stats in
// the graph metadata and, when path is non-empty, persists the graph.
func (e *Enricher) Save(path string) error {
	applied := 0
	for _, link := range e.newLinks {
		props := map[string]any{}
		if link.Score > 0 {
			props["score"] = link.Score
		}
		if e.graph.AddTaggedRelation(link.SourceID, link.TargetID, link.Type, EnricherToolkit, props) {
			applied++
		}
	}
	e.stats["links_applied"] += applied
	e.newLinks = nil
	e.queued = make(map[string]bool)

	e.graph.Metadata()["enrichment_stats"] = e.Stats()
	e.logger.Info("enrichment applied %d links", applied)

	if path == "" {
		return nil
	}
	if err := e.graph.DumpToJSON(path); err != nil {
		return fmt.Errorf("failed to persist enriched graph: %w", err)
	}
	return nil
}

// queueLink records a proposed link unless it duplicates a pending or
// existing relation.
func (e *Enricher) queueLink(sourceID, targetID, relType string, score float64) bool {
	if sourceID == targetID {
		return false
	}
	key := sourceID + "|" + targetID + "|" + relType
	if e.queued[key] {
		return false
	}
	for _, rel := range e.graph.Relations(sourceID, graph.DirectionOut) {
		if rel.TargetID == targetID && rel.Type == relType {
			return false
		}
	}
	e.queued[key] = true
	e.newLinks = append(e.newLinks, Link{SourceID: sourceID, TargetID: targetID, Type: relType, Score: score})
	return true
}

// dedupKey normalizes an entity name for duplicate grouping.
func dedupKey(name string, fuzzy bool) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if !fuzzy {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	key = b.String()
	key = strings.TrimSuffix(key, "s")
	return key
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func intersection(a, b map[string]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]bool) float64 {
	union := len(a) + len(b) - intersection(a, b)
	if union == 0 {
		return 0
	}
	return float64(intersection(a, b)) / float64(union)
}

// spansSources reports whether a name group carries citations from at least
// two distinct source toolkits.
func spansSources(group []*graph.Entity) bool {
	first := ""
	for _, entity := range group {
		for _, c := range entity.Citations {
			if c.SourceToolkit == "" {
				continue
			}
			if first == "" {
				first = c.SourceToolkit
			} else if c.SourceToolkit != first {
				return true
			}
		}
	}
	return false
}

// sharesFile reports whether two entities cite a common file.
func sharesFile(a, b *graph.Entity) bool {
	for _, ca := range a.Citations {
		for _, cb := range b.Citations {
			if ca.FilePath == cb.FilePath {
				return true
			}
		}
	}
	return false
}
