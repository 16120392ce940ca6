// Package retrieval exposes the knowledge graph to agents as a read-only
// facade. Every method renders plain formatted text rather than structs so
// the output can be handed to an LLM verbatim; Toolkit wraps the facade as
// named tools.
package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tracewire/inventorygraph/graph"
	"github.com/tracewire/inventorygraph/log"
)

// DefaultMaxContentBytes caps GetEntityContent output.
const DefaultMaxContentBytes = 8000

// contextLines is how many lines around a citation GetEntityContent shows.
const contextLines = 5

// ContentReader fetches file content for citation resolution. source.Source
// implementations satisfy it.
type ContentReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// APIWrapper is the read-only retrieval facade over a knowledge graph. It
// never mutates the graph.
type APIWrapper struct {
	graph           *graph.KnowledgeGraph
	reader          ContentReader
	baseDir         string
	logger          log.Logger
	maxContentBytes int
}

// Option configures an APIWrapper.
type Option func(*APIWrapper)

// WithSourceReader sets a reader used to fetch file content when the file is
// not readable under the base directory.
func WithSourceReader(r ContentReader) Option {
	return func(w *APIWrapper) { w.reader = r }
}

// WithBaseDir sets the local directory file content is read from. Reads are
// confined to it.
func WithBaseDir(dir string) Option {
	return func(w *APIWrapper) { w.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(w *APIWrapper) { w.logger = logger }
}

// WithMaxContentBytes caps how much file content GetEntityContent returns.
func WithMaxContentBytes(n int) Option {
	return func(w *APIWrapper) { w.maxContentBytes = n }
}

// New creates an APIWrapper over a graph.
func New(g *graph.KnowledgeGraph, opts ...Option) *APIWrapper {
	w := &APIWrapper{
		graph:           g,
		logger:          log.Default(),
		maxContentBytes: DefaultMaxContentBytes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SearchGraph runs a tiered search and formats the top results.
func (w *APIWrapper) SearchGraph(query string, topK int, entityType, layer, filePattern string) string {
	if strings.TrimSpace(query) == "" {
		return "Empty query. Provide a name, phrase or identifier to search for."
	}
	if topK <= 0 {
		topK = 10
	}
	results := w.graph.Search(query, topK, entityType, layer, filePattern)
	if len(results) == 0 {
		return fmt.Sprintf("No entities matched %q. Try a broader query or drop the filters.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entities for %q:\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (score %.2f)\n", i+1, w.entityLine(r.Entity), r.Score)
	}
	return b.String()
}

// GetEntity formats one entity with its properties, citations and relations.
func (w *APIWrapper) GetEntity(name string) string {
	matches := w.graph.FindAllEntitiesByName(name)
	if len(matches) == 0 {
		return w.notFound(name)
	}

	var b strings.Builder
	if len(matches) > 1 {
		fmt.Fprintf(&b, "%d entities named %q:\n\n", len(matches), name)
	}
	for _, e := range matches {
		b.WriteString(w.formatEntity(e))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// GetEntityContent returns the source text behind an entity's primary
// citation, read from the base directory or, failing that, the document
// source.
func (w *APIWrapper) GetEntityContent(ctx context.Context, name string) (string, error) {
	entity := w.graph.FindEntityByName(name)
	if entity == nil {
		return w.notFound(name), nil
	}
	if len(entity.Citations) == 0 {
		return fmt.Sprintf("Entity %q has no citations, so there is no source to show.", name), nil
	}

	citation := entity.Citations[0]
	for _, c := range entity.Citations {
		if c.LineStart > 0 {
			citation = c
			break
		}
	}

	content, err := w.readFile(ctx, citation.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", citation.FilePath, err)
	}

	if citation.LineStart > 0 {
		content = sliceLines(content, citation.LineStart, citation.LineEnd)
	}
	if len(content) > w.maxContentBytes {
		content = content[:w.maxContentBytes] + "\n... (truncated)"
	}

	header := fmt.Sprintf("%s from %s", entity.Name, citation.FilePath)
	if citation.LineStart > 0 {
		header = fmt.Sprintf("%s (lines %d-%d)", header, citation.LineStart, citation.LineEnd)
	}
	return header + ":\n\n" + content, nil
}

// readFile tries the confined local directory first, then the source.
func (w *APIWrapper) readFile(ctx context.Context, path string) (string, error) {
	if w.baseDir != "" {
		full := filepath.Join(w.baseDir, path)
		abs, err := filepath.Abs(full)
		if err == nil {
			base, berr := filepath.Abs(w.baseDir)
			if berr == nil && (abs == base || strings.HasPrefix(abs, base+string(filepath.Separator))) {
				if data, rerr := os.ReadFile(abs); rerr == nil {
					return string(data), nil
				}
			} else {
				return "", fmt.Errorf("path %s escapes the base directory", path)
			}
		}
	}
	if w.reader != nil {
		return w.reader.ReadFile(ctx, path)
	}
	return "", fmt.Errorf("no readable copy of %s (no base directory or source configured)", path)
}

// ImpactAnalysis formats what would be affected by changing an entity.
func (w *APIWrapper) ImpactAnalysis(name, direction string, maxDepth int) string {
	entity := w.graph.FindEntityByName(name)
	if entity == nil {
		return w.notFound(name)
	}
	if direction == "" {
		direction = "downstream"
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	impact := w.graph.ImpactAnalysis(entity.ID, direction, maxDepth)
	if impact == nil || len(impact.Impacted) == 0 {
		return fmt.Sprintf("No %s impact found for %q within depth %d.", direction, entity.Name, maxDepth)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s impact of %q (%d entities):\n", titleCase(direction), entity.Name, len(impact.Impacted))
	for i, id := range impact.Impacted {
		impacted := w.graph.GetEntity(id)
		if impacted == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s", i+1, w.entityLine(impacted))
		if path := impact.Paths[id]; len(path) > 1 {
			fmt.Fprintf(&b, " via %s", w.pathNames(path))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// GetRelatedEntities lists an entity's neighbors, optionally filtered by
// relation type. Direction is "in", "out" or "both".
func (w *APIWrapper) GetRelatedEntities(name, relationType, direction string) string {
	entity := w.graph.FindEntityByName(name)
	if entity == nil {
		return w.notFound(name)
	}

	dir := graph.DirectionBoth
	switch strings.ToLower(direction) {
	case "in":
		dir = graph.DirectionIn
	case "out":
		dir = graph.DirectionOut
	}

	rels := w.graph.Relations(entity.ID, dir)
	var lines []string
	for _, rel := range rels {
		if relationType != "" && !strings.EqualFold(rel.Type, relationType) {
			continue
		}
		otherID := rel.TargetID
		arrow := "->"
		if otherID == entity.ID {
			otherID = rel.SourceID
			arrow = "<-"
		}
		other := w.graph.GetEntity(otherID)
		if other == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s [%s] %s", entity.Name, arrow, rel.Type, w.entityLine(other)))
	}

	if len(lines) == 0 {
		if relationType != "" {
			return fmt.Sprintf("%q has no %s relations (%s).", entity.Name, relationType, direction)
		}
		return fmt.Sprintf("%q has no relations.", entity.Name)
	}
	return fmt.Sprintf("Relations of %q (%d):\n%s\n", entity.Name, len(lines), strings.Join(lines, "\n"))
}

// SearchFacts searches only fact entities.
func (w *APIWrapper) SearchFacts(query string, topK int) string {
	if topK <= 0 {
		topK = 10
	}
	results := w.graph.Search(query, topK, "fact", "", "")
	if len(results) == 0 {
		return fmt.Sprintf("No facts matched %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d facts for %q:\n", len(results), query)
	for i, r := range results {
		statement := r.Entity.Name
		if s, ok := r.Entity.Properties["statement"].(string); ok && s != "" {
			statement = s
		}
		fmt.Fprintf(&b, "%d. %s", i+1, statement)
		if len(r.Entity.Citations) > 0 {
			fmt.Fprintf(&b, " [%s]", r.Entity.Citations[0].FilePath)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SearchByFile lists entities cited from files matching a pattern.
func (w *APIWrapper) SearchByFile(pattern string) string {
	var matched []string
	for _, file := range w.graph.Files() {
		if graph.MatchFilePattern(pattern, file) {
			matched = append(matched, file)
		}
	}
	if len(matched) == 0 {
		return fmt.Sprintf("No indexed files match %q.", pattern)
	}
	sort.Strings(matched)

	var b strings.Builder
	for _, file := range matched {
		entities := w.graph.EntitiesByFile(file)
		fmt.Fprintf(&b, "%s (%d entities):\n", file, len(entities))
		for _, e := range entities {
			fmt.Fprintf(&b, "  - %s\n", w.entityLine(e))
		}
	}
	return b.String()
}

// AdvancedSearch applies a full SearchFilter.
func (w *APIWrapper) AdvancedSearch(query string, topK int, filter graph.SearchFilter) string {
	if topK <= 0 {
		topK = 10
	}
	results := w.graph.SearchAdvanced(query, topK, filter)
	if len(results) == 0 {
		return fmt.Sprintf("No entities matched %q with the given filters.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entities for %q:\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (score %.2f)\n", i+1, w.entityLine(r.Entity), r.Score)
	}
	return b.String()
}

// ListEntitiesByType lists entities of one type.
func (w *APIWrapper) ListEntitiesByType(entityType string, limit int) string {
	entities := w.graph.EntitiesByType(entityType, limit)
	if len(entities) == 0 {
		return fmt.Sprintf("No entities of type %q.", entityType)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d entities of type %q:\n", len(entities), entityType)
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s\n", w.entityLine(e))
	}
	return b.String()
}

// ListEntitiesByLayer lists entities in one taxonomy layer.
func (w *APIWrapper) ListEntitiesByLayer(layer string, limit int) string {
	entities := w.graph.EntitiesByLayer(layer, limit)
	if len(entities) == 0 {
		return fmt.Sprintf("No entities in layer %q.", layer)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d entities in layer %q:\n", len(entities), layer)
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s\n", w.entityLine(e))
	}
	return b.String()
}

// GetFileInfo summarizes one indexed file.
func (w *APIWrapper) GetFileInfo(path string) string {
	entities := w.graph.EntitiesByFile(path)
	if len(entities) == 0 {
		return fmt.Sprintf("File %q is not indexed. Use list_files to see indexed files.", path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d entities\n", path, len(entities))
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s\n", w.entityLine(e))
	}
	return b.String()
}

// ListFiles lists every file the graph has citations for.
func (w *APIWrapper) ListFiles() string {
	files := w.graph.Files()
	if len(files) == 0 {
		return "The graph has no indexed files."
	}
	sort.Strings(files)
	return fmt.Sprintf("%d indexed files:\n%s\n", len(files), strings.Join(files, "\n"))
}

// GetStats summarizes the graph.
func (w *APIWrapper) GetStats() string {
	stats := w.graph.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge graph: %d entities, %d relations, %d files\n",
		stats.NodeCount, stats.EdgeCount, stats.FileCount)

	b.WriteString("Entities by layer:\n")
	for _, layer := range sortedKeys(stats.Layers) {
		fmt.Fprintf(&b, "  %s: %d\n", layer, stats.Layers[layer])
	}
	b.WriteString("Top entity types:\n")
	for _, typ := range sortedKeys(stats.EntityTypes) {
		fmt.Fprintf(&b, "  %s: %d\n", typ, stats.EntityTypes[typ])
	}
	return b.String()
}

// GetCitations lists every citation for an entity.
func (w *APIWrapper) GetCitations(name string) string {
	entity := w.graph.FindEntityByName(name)
	if entity == nil {
		return w.notFound(name)
	}
	if len(entity.Citations) == 0 {
		return fmt.Sprintf("Entity %q has no citations.", entity.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d citations for %q:\n", len(entity.Citations), entity.Name)
	for _, c := range entity.Citations {
		fmt.Fprintf(&b, "- %s", c.FilePath)
		if c.LineStart > 0 {
			fmt.Fprintf(&b, ":%d-%d", c.LineStart, c.LineEnd)
		}
		if c.SourceToolkit != "" {
			fmt.Fprintf(&b, " (%s)", c.SourceToolkit)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (w *APIWrapper) notFound(name string) string {
	suggestions := w.graph.Search(name, 3, "", "", "")
	msg := fmt.Sprintf("No entity named %q in the graph.", name)
	if len(suggestions) == 0 {
		return msg + " Use search_graph to explore what is indexed."
	}
	names := make([]string, len(suggestions))
	for i, s := range suggestions {
		names[i] = s.Entity.Name
	}
	return fmt.Sprintf("%s Did you mean: %s?", msg, strings.Join(names, ", "))
}

// entityLine renders the one-line form used in listings.
func (w *APIWrapper) entityLine(e *graph.Entity) string {
	line := fmt.Sprintf("%s (%s", e.Name, e.Type)
	if e.Layer != "" {
		line += ", " + e.Layer + " layer"
	}
	line += ")"
	if len(e.Citations) > 0 {
		line += " " + e.Citations[0].FilePath
	}
	return line
}

// formatEntity renders the detailed multi-line form.
func (w *APIWrapper) formatEntity(e *graph.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s\nType: %s\n", e.Name, e.Type)
	if e.Layer != "" {
		fmt.Fprintf(&b, "Layer: %s\n", e.Layer)
	}
	if desc, ok := e.Properties["description"].(string); ok && desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	for _, key := range sortedPropKeys(e.Properties) {
		if key == "description" {
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", key, e.Properties[key])
	}
	if len(e.Citations) > 0 {
		b.WriteString("Citations:\n")
		for _, c := range e.Citations {
			fmt.Fprintf(&b, "  - %s", c.FilePath)
			if c.LineStart > 0 {
				fmt.Fprintf(&b, ":%d-%d", c.LineStart, c.LineEnd)
			}
			b.WriteString("\n")
		}
	}
	rels := w.graph.Relations(e.ID, graph.DirectionBoth)
	if len(rels) > 0 {
		fmt.Fprintf(&b, "Relations: %d\n", len(rels))
	}
	return b.String()
}

func (w *APIWrapper) pathNames(path []string) string {
	names := make([]string, 0, len(path))
	for _, id := range path {
		if e := w.graph.GetEntity(id); e != nil {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, " -> ")
}

// sliceLines cuts content to a citation's line range plus context.
func sliceLines(content string, lineStart, lineEnd int) string {
	lines := strings.Split(content, "\n")
	start := lineStart - 1 - contextLines
	if start < 0 {
		start = 0
	}
	if lineEnd <= 0 {
		lineEnd = lineStart
	}
	end := lineEnd + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	if start >= len(lines) {
		return content
	}
	return strings.Join(lines[start:end], "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPropKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
