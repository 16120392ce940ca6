package taxonomy

import "strings"

// SourceRule maps a file-path substring to a source name, replacing the
// hard-coded project substrings the original design relied on.
type SourceRule struct {
	PathContains string
	Source       string
}

// Policy is the injectable taxonomy configuration consumed by the graph,
// enricher and extractors. A zero Policy validates nothing; use Default for
// the curated tables.
type Policy struct {
	// EntityLayers maps entity type -> layer.
	EntityLayers map[string]string
	// RelationCategories maps relation type -> category.
	RelationCategories map[string]string
	// TypePriority ranks entity types for deduplication merges; the merged
	// node adopts the highest-priority type.
	TypePriority map[string]int
	// NonMergeable lists type pairs that must never merge even on an exact
	// name match.
	NonMergeable [][2]string
	// NeverDeduplicate lists types whose identity is context dependent and
	// which are never merged regardless of name.
	NeverDeduplicate map[string]bool
	// SourceRules classify citation file paths into source names for
	// cross-source queries.
	SourceRules []SourceRule
}

// Default returns the curated taxonomy policy.
func Default() Policy {
	return Policy{
		EntityLayers:       entityLayers,
		RelationCategories: relationCategories,
		TypePriority: map[string]int{
			"class":        100,
			"interface":    95,
			"struct":       90,
			"function":     85,
			"method":       80,
			"api_endpoint": 75,
			"service":      70,
			"module":       65,
			"package":      60,
			"table":        55,
			"test_case":    50,
			"requirement":  45,
			"document":     40,
			"ticket":       35,
			"concept":      30,
			"glossary_term": 25,
			"fact":          20,
			"file":          10,
		},
		NonMergeable: [][2]string{
			{"test_case", "function"},
			{"test_case", "method"},
			{"file", "class"},
			{"file", "function"},
			{"table", "class"},
			{"person", "service"},
		},
		NeverDeduplicate: map[string]bool{
			"tool":      true,
			"parameter": true,
			"column":    true,
			"fact":      true,
		},
	}
}

// LayerOf returns the layer for an entity type, or "" for types outside the
// taxonomy.
func (p Policy) LayerOf(entityType string) string {
	return p.EntityLayers[Normalize(entityType)]
}

// IsEntityType reports whether the type is in the taxonomy.
func (p Policy) IsEntityType(entityType string) bool {
	_, ok := p.EntityLayers[Normalize(entityType)]
	return ok
}

// IsRelationType reports whether the relation type is in the taxonomy.
func (p Policy) IsRelationType(relationType string) bool {
	_, ok := p.RelationCategories[Normalize(relationType)]
	return ok
}

// CategoryOf returns the category for a relation type, or "".
func (p Policy) CategoryOf(relationType string) string {
	return p.RelationCategories[Normalize(relationType)]
}

// TypesInLayer returns all entity types belonging to a layer.
func (p Policy) TypesInLayer(layer string) []string {
	layer = Normalize(layer)
	var types []string
	for t, l := range p.EntityLayers {
		if l == layer {
			types = append(types, t)
		}
	}
	return types
}

// CanDeduplicate reports whether a type participates in deduplication at all.
func (p Policy) CanDeduplicate(entityType string) bool {
	return !p.NeverDeduplicate[Normalize(entityType)]
}

// Mergeable reports whether two entity types may merge during deduplication.
// Identical types are always mergeable unless the type is never-deduplicate.
func (p Policy) Mergeable(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if !p.CanDeduplicate(a) || !p.CanDeduplicate(b) {
		return false
	}
	for _, pair := range p.NonMergeable {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return false
		}
	}
	return true
}

// MergedType picks the surviving type for a merge, preferring the higher
// TypePriority entry. Unranked types lose to ranked ones.
func (p Policy) MergedType(a, b string) string {
	a, b = Normalize(a), Normalize(b)
	if p.TypePriority[b] > p.TypePriority[a] {
		return b
	}
	return a
}

// ClassifySource maps a citation file path to a source name via SourceRules.
// Returns "" when no rule matches.
func (p Policy) ClassifySource(filePath string) string {
	for _, rule := range p.SourceRules {
		if rule.PathContains != "" && strings.Contains(filePath, rule.PathContains) {
			return rule.Source
		}
	}
	return ""
}
