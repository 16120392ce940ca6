package graph

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SearchResult pairs an entity with its relevance score.
type SearchResult struct {
	Entity *Entity
	Score  float64
}

// SearchFilter narrows SearchAdvanced results. Multi-value fields are
// OR-combined within themselves and AND-combined across fields.
type SearchFilter struct {
	Types            []string
	Layers           []string
	FilePatterns     []string
	RequireRelations bool
	MinCitations     int
}

// Search ranks entities against a free-text query. Scoring is tiered rather
// than a single similarity metric: exact name match 1.0, substring matches
// 0.75-0.85 (boundary-aligned higher), token overlap up to 0.7, file path
// 0.55, description 0.5, type name 0.3. Ties are broken alphabetically by
// name for determinism.
func (g *KnowledgeGraph) Search(query string, topK int, entityType, layer, filePattern string) []SearchResult {
	filter := SearchFilter{}
	if entityType != "" {
		filter.Types = []string{entityType}
	}
	if layer != "" {
		filter.Layers = []string{layer}
	}
	if filePattern != "" {
		filter.FilePatterns = []string{filePattern}
	}
	return g.SearchAdvanced(query, topK, filter)
}

// SearchAdvanced is the multi-criteria variant of Search with OR-combined
// filters and structural predicates.
func (g *KnowledgeGraph) SearchAdvanced(query string, topK int, filter SearchFilter) []SearchResult {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := Tokenize(query)

	var results []SearchResult
	for _, id := range g.order {
		entity, ok := g.nodes[id]
		if !ok || !g.matchesFilter(entity, filter) {
			continue
		}
		score := g.scoreEntity(entity, queryLower, queryTokens)
		if score > 0 {
			results = append(results, SearchResult{Entity: entity, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func (g *KnowledgeGraph) matchesFilter(entity *Entity, filter SearchFilter) bool {
	if len(filter.Types) > 0 {
		hit := false
		for _, t := range filter.Types {
			if strings.EqualFold(entity.Type, t) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(filter.Layers) > 0 {
		hit := false
		for _, l := range filter.Layers {
			if strings.EqualFold(entity.Layer, l) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(filter.FilePatterns) > 0 {
		hit := false
		for _, pattern := range filter.FilePatterns {
			for _, c := range entity.Citations {
				if MatchFilePattern(pattern, c.FilePath) {
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		if !hit {
			return false
		}
	}
	if filter.RequireRelations && len(g.Relations(entity.ID, DirectionBoth)) == 0 {
		return false
	}
	if filter.MinCitations > 0 && len(entity.Citations) < filter.MinCitations {
		return false
	}
	return true
}

// scoreEntity applies the tiered scoring ladder, keeping the best tier hit.
func (g *KnowledgeGraph) scoreEntity(entity *Entity, queryLower string, queryTokens []string) float64 {
	if queryLower == "" {
		return 0
	}
	nameLower := strings.ToLower(entity.Name)

	if nameLower == queryLower {
		return 1.0
	}

	best := 0.0

	if idx := strings.Index(nameLower, queryLower); idx >= 0 {
		score := 0.75
		if boundaryAligned(nameLower, queryLower, idx) {
			score = 0.85
		} else if idx == 0 {
			score = 0.80
		}
		best = max(best, score)
	}

	if len(queryTokens) > 0 {
		nameTokens := tokenSet(Tokenize(entity.Name))
		matched := 0
		for _, qt := range queryTokens {
			if nameTokens[qt] {
				matched++
			}
		}
		if matched > 0 {
			best = max(best, 0.7*float64(matched)/float64(len(queryTokens)))
		}
	}

	for _, c := range entity.Citations {
		if strings.Contains(strings.ToLower(c.FilePath), queryLower) {
			best = max(best, 0.55)
			break
		}
	}

	if desc, ok := entity.Properties["description"].(string); ok && desc != "" {
		descLower := strings.ToLower(desc)
		if strings.Contains(descLower, queryLower) {
			best = max(best, 0.5)
		} else if len(queryTokens) > 0 {
			descTokens := tokenSet(Tokenize(desc))
			matched := 0
			for _, qt := range queryTokens {
				if descTokens[qt] {
					matched++
				}
			}
			if matched > 0 {
				best = max(best, 0.5*float64(matched)/float64(len(queryTokens)))
			}
		}
	}

	if strings.Contains(strings.ToLower(entity.Type), queryLower) {
		best = max(best, 0.3)
	}

	return best
}

// boundaryAligned reports whether the match at idx starts and ends on token
// boundaries of the haystack (word separators or case transitions).
func boundaryAligned(haystack, needle string, idx int) bool {
	startOK := idx == 0
	if !startOK {
		before, _ := utf8.DecodeLastRuneInString(haystack[:idx])
		startOK = isSeparator(before)
	}
	end := idx + len(needle)
	endOK := end == len(haystack)
	if !endOK {
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		endOK = isSeparator(after)
	}
	return startOK && endOK
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Tokenize splits a string into lowercase word tokens, handling camelCase,
// snake_case and kebab-case boundaries.
func Tokenize(s string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current.WriteRune(r)
	}
	flush()
	return tokens
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// MatchFilePattern matches a file path against a glob pattern, falling back
// to substring containment when the pattern has no glob meaning or does not
// match as a glob.
func MatchFilePattern(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	if ok, err := filepath.Match(pattern, path); err == nil && ok {
		return true
	}
	if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
		return true
	}
	return strings.Contains(strings.ToLower(path), strings.ToLower(pattern))
}
