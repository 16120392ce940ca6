package graph

import (
	"maps"
	"strings"

	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/taxonomy"
)

// KnowledgeGraph is the authoritative in-memory store for entities and
// relations. It is not safe for concurrent mutation; callers serialize
// writes externally (single-writer discipline).
type KnowledgeGraph struct {
	policy taxonomy.Policy
	logger log.Logger

	nodes map[string]*Entity
	order []string // node ids in insertion order, for deterministic iteration
	links []*Relation

	nameIndex      map[string][]string // lower(name) -> ids
	typeIndex      map[string][]string // lower(type) -> ids
	fileIndex      map[string][]string // file path -> ids
	sourceDocIndex map[string][]string // doc id -> ids

	schema   map[string]any
	metadata map[string]any
}

// Option configures a KnowledgeGraph.
type Option func(*KnowledgeGraph)

// WithPolicy sets the taxonomy policy used for layer derivation and source
// classification.
func WithPolicy(policy taxonomy.Policy) Option {
	return func(g *KnowledgeGraph) {
		g.policy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(g *KnowledgeGraph) {
		g.logger = logger
	}
}

// New creates an empty knowledge graph with the default taxonomy policy.
func New(opts ...Option) *KnowledgeGraph {
	g := &KnowledgeGraph{
		policy:         taxonomy.Default(),
		logger:         log.Default(),
		nodes:          make(map[string]*Entity),
		nameIndex:      make(map[string][]string),
		typeIndex:      make(map[string][]string),
		fileIndex:      make(map[string][]string),
		sourceDocIndex: make(map[string][]string),
		schema:         make(map[string]any),
		metadata:       make(map[string]any),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the taxonomy policy in use.
func (g *KnowledgeGraph) Policy() taxonomy.Policy {
	return g.policy
}

// AddEntity inserts an entity or, when the id already exists, merges the
// citation and properties into the existing node. It always returns the
// entity id. Identical citations (same file path and line range) are never
// duplicated.
func (g *KnowledgeGraph) AddEntity(id, name, entityType string, citation *Citation, properties map[string]any) string {
	props := FilterProperties(properties)

	if existing, ok := g.nodes[id]; ok {
		if citation != nil {
			g.mergeCitation(existing, *citation)
		}
		if props != nil {
			if existing.Properties == nil {
				existing.Properties = make(map[string]any)
			}
			maps.Copy(existing.Properties, props)
		}
		return id
	}

	entity := &Entity{
		ID:         id,
		Name:       name,
		Type:       entityType,
		Layer:      g.policy.LayerOf(entityType),
		Properties: props,
	}
	if citation != nil {
		entity.Citations = []Citation{*citation}
	}

	g.nodes[id] = entity
	g.order = append(g.order, id)
	g.indexEntity(entity)
	return id
}

// mergeCitation appends a citation unless an identical one is present, and
// keeps the file and doc indices current.
func (g *KnowledgeGraph) mergeCitation(entity *Entity, citation Citation) {
	key := citation.Key()
	for _, c := range entity.Citations {
		if c.Key() == key {
			return
		}
	}
	entity.Citations = append(entity.Citations, citation)
	if citation.FilePath != "" {
		g.fileIndex[citation.FilePath] = appendUnique(g.fileIndex[citation.FilePath], entity.ID)
	}
	if citation.DocID != "" {
		g.sourceDocIndex[citation.DocID] = appendUnique(g.sourceDocIndex[citation.DocID], entity.ID)
	}
}

func (g *KnowledgeGraph) indexEntity(entity *Entity) {
	g.nameIndex[strings.ToLower(entity.Name)] = appendUnique(g.nameIndex[strings.ToLower(entity.Name)], entity.ID)
	g.typeIndex[strings.ToLower(entity.Type)] = appendUnique(g.typeIndex[strings.ToLower(entity.Type)], entity.ID)
	for _, c := range entity.Citations {
		if c.FilePath != "" {
			g.fileIndex[c.FilePath] = appendUnique(g.fileIndex[c.FilePath], entity.ID)
		}
		if c.DocID != "" {
			g.sourceDocIndex[c.DocID] = appendUnique(g.sourceDocIndex[c.DocID], entity.ID)
		}
	}
}

// GetEntity returns the entity with the given id, or nil.
func (g *KnowledgeGraph) GetEntity(id string) *Entity {
	return g.nodes[id]
}

// UpdateEntity merges properties into an existing entity. Returns false when
// the entity does not exist.
func (g *KnowledgeGraph) UpdateEntity(id string, properties map[string]any) bool {
	entity, ok := g.nodes[id]
	if !ok {
		return false
	}
	props := FilterProperties(properties)
	if props != nil {
		if entity.Properties == nil {
			entity.Properties = make(map[string]any)
		}
		maps.Copy(entity.Properties, props)
	}
	return true
}

// FindEntityByName returns the first entity whose name matches
// case-insensitively, or nil. Names are not unique; callers that need to
// disambiguate use FindAllEntitiesByName.
func (g *KnowledgeGraph) FindEntityByName(name string) *Entity {
	matches := g.FindAllEntitiesByName(name)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// FindAllEntitiesByName returns every entity whose name matches
// case-insensitively, in insertion order.
func (g *KnowledgeGraph) FindAllEntitiesByName(name string) []*Entity {
	lower := strings.ToLower(name)
	if ids, ok := g.nameIndex[lower]; ok && len(ids) > 0 {
		return g.resolve(ids)
	}
	// Fallback scan for legacy files whose indices were incomplete.
	var matches []*Entity
	for _, id := range g.order {
		if e, ok := g.nodes[id]; ok && strings.ToLower(e.Name) == lower {
			matches = append(matches, e)
		}
	}
	return matches
}

// EntitiesByType returns entities of a type, case-insensitively. A limit of 0
// means no limit. Types absent from the index fall back to a linear scan.
func (g *KnowledgeGraph) EntitiesByType(entityType string, limit int) []*Entity {
	lower := strings.ToLower(entityType)
	var matches []*Entity
	if ids, ok := g.typeIndex[lower]; ok {
		matches = g.resolve(ids)
	} else {
		for _, id := range g.order {
			if e, ok := g.nodes[id]; ok && strings.ToLower(e.Type) == lower {
				matches = append(matches, e)
			}
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// EntitiesByLayer returns entities in a layer by expanding the layer to its
// member types, plus a scan for entities carrying an explicit layer tag whose
// type is outside the taxonomy.
func (g *KnowledgeGraph) EntitiesByLayer(layer string, limit int) []*Entity {
	lower := strings.ToLower(layer)
	seen := make(map[string]bool)
	var matches []*Entity

	for _, t := range g.policy.TypesInLayer(lower) {
		for _, e := range g.EntitiesByType(t, 0) {
			if !seen[e.ID] {
				seen[e.ID] = true
				matches = append(matches, e)
			}
		}
	}
	for _, id := range g.order {
		e, ok := g.nodes[id]
		if ok && !seen[e.ID] && strings.ToLower(e.Layer) == lower {
			seen[e.ID] = true
			matches = append(matches, e)
		}
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// AddRelation adds a directed edge. It returns false without mutating the
// graph when either endpoint is missing; the miss is logged as a warning so
// the ingestion pipeline can continue with remaining relations.
func (g *KnowledgeGraph) AddRelation(sourceID, targetID, relationType string, properties map[string]any) bool {
	return g.AddTaggedRelation(sourceID, targetID, relationType, "", properties)
}

// AddTaggedRelation adds a directed edge carrying the source toolkit that
// discovered it.
func (g *KnowledgeGraph) AddTaggedRelation(sourceID, targetID, relationType, sourceToolkit string, properties map[string]any) bool {
	if _, ok := g.nodes[sourceID]; !ok {
		g.logger.Warn("relation %s dropped: source entity %q not in graph", relationType, sourceID)
		return false
	}
	if _, ok := g.nodes[targetID]; !ok {
		g.logger.Warn("relation %s dropped: target entity %q not in graph", relationType, targetID)
		return false
	}
	for _, rel := range g.links {
		if rel.SourceID == sourceID && rel.TargetID == targetID &&
			rel.Type == relationType && rel.SourceToolkit == sourceToolkit {
			return true
		}
	}
	g.links = append(g.links, &Relation{
		SourceID:      sourceID,
		TargetID:      targetID,
		Type:          relationType,
		SourceToolkit: sourceToolkit,
		Properties:    FilterProperties(properties),
	})
	return true
}

// Direction selects which edges Relations returns.
type Direction string

const (
	// DirectionOut selects edges leaving the entity.
	DirectionOut Direction = "out"
	// DirectionIn selects edges entering the entity.
	DirectionIn Direction = "in"
	// DirectionBoth selects both.
	DirectionBoth Direction = "both"
)

// Relations returns the edges attached to an entity in the given direction.
func (g *KnowledgeGraph) Relations(id string, direction Direction) []*Relation {
	var out []*Relation
	for _, rel := range g.links {
		switch direction {
		case DirectionOut:
			if rel.SourceID == id {
				out = append(out, rel)
			}
		case DirectionIn:
			if rel.TargetID == id {
				out = append(out, rel)
			}
		default:
			if rel.SourceID == id || rel.TargetID == id {
				out = append(out, rel)
			}
		}
	}
	return out
}

// RelationsBySource returns edges created by a source toolkit, optionally
// narrowed to one relation type.
func (g *KnowledgeGraph) RelationsBySource(sourceToolkit, relationType string) []*Relation {
	var out []*Relation
	for _, rel := range g.links {
		if rel.SourceToolkit != sourceToolkit {
			continue
		}
		if relationType != "" && rel.Type != relationType {
			continue
		}
		out = append(out, rel)
	}
	return out
}

// CrossSourceRelations returns edges whose endpoints were observed by
// different sets of source toolkits. An edge qualifies when both endpoint
// toolkit sets are non-empty and differ.
func (g *KnowledgeGraph) CrossSourceRelations() []*Relation {
	var out []*Relation
	for _, rel := range g.links {
		src := g.toolkitSet(rel.SourceID)
		tgt := g.toolkitSet(rel.TargetID)
		if len(src) == 0 || len(tgt) == 0 {
			continue
		}
		if !sameSet(src, tgt) {
			out = append(out, rel)
		}
	}
	return out
}

// toolkitSet collects the source toolkits attached to an entity's citations,
// falling back to the policy's path classification rules.
func (g *KnowledgeGraph) toolkitSet(id string) map[string]bool {
	set := make(map[string]bool)
	entity, ok := g.nodes[id]
	if !ok {
		return set
	}
	for _, c := range entity.Citations {
		toolkit := c.SourceToolkit
		if toolkit == "" {
			toolkit = g.policy.ClassifySource(c.FilePath)
		}
		if toolkit != "" {
			set[toolkit] = true
		}
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// EntitiesByFile returns entities carrying a citation from the file path,
// using the file index with a fallback scan.
func (g *KnowledgeGraph) EntitiesByFile(filePath string) []*Entity {
	if ids, ok := g.fileIndex[filePath]; ok && len(ids) > 0 {
		return g.resolve(ids)
	}
	var matches []*Entity
	for _, id := range g.order {
		e, ok := g.nodes[id]
		if !ok {
			continue
		}
		for _, c := range e.Citations {
			if c.FilePath == filePath {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// RemoveEntitiesByFile drops citations attributed to the file; entities left
// with no citations are deleted along with their relations. It returns the
// number of entities deleted. Used by delta updates to purge stale entities
// before re-ingestion.
func (g *KnowledgeGraph) RemoveEntitiesByFile(filePath string) int {
	return g.removeEntities(func(c Citation) bool {
		return c.FilePath == filePath
	})
}

// RemoveEntitiesBySource drops citations attributed to a source toolkit and
// deletes entities left without citations, plus relations tagged with the
// toolkit.
func (g *KnowledgeGraph) RemoveEntitiesBySource(sourceToolkit string) int {
	removed := g.removeEntities(func(c Citation) bool {
		return c.SourceToolkit == sourceToolkit
	})
	kept := g.links[:0]
	for _, rel := range g.links {
		if rel.SourceToolkit != sourceToolkit {
			kept = append(kept, rel)
		}
	}
	g.links = kept
	return removed
}

func (g *KnowledgeGraph) removeEntities(match func(Citation) bool) int {
	removed := 0
	changed := false
	for _, id := range g.order {
		entity, ok := g.nodes[id]
		if !ok {
			continue
		}
		kept := entity.Citations[:0]
		for _, c := range entity.Citations {
			if !match(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(entity.Citations) {
			continue
		}
		entity.Citations = kept
		changed = true
		if len(entity.Citations) == 0 {
			g.deleteEntity(id)
			removed++
		}
	}
	// Surviving entities may have lost citations too, which invalidates the
	// file and source-document indices.
	if changed {
		g.rebuildIndices()
	}
	return removed
}

// deleteEntity removes a node and every relation touching it.
func (g *KnowledgeGraph) deleteEntity(id string) {
	delete(g.nodes, id)
	kept := g.links[:0]
	for _, rel := range g.links {
		if rel.SourceID != id && rel.TargetID != id {
			kept = append(kept, rel)
		}
	}
	g.links = kept

	order := g.order[:0]
	for _, oid := range g.order {
		if oid != id {
			order = append(order, oid)
		}
	}
	g.order = order
}

// MergeEntities folds the duplicate node into the surviving node: citations
// and properties are unioned, relations are rewired, and the survivor adopts
// the given type. Used by enrichment deduplication.
func (g *KnowledgeGraph) MergeEntities(keepID, dropID, mergedType string) bool {
	keep, ok := g.nodes[keepID]
	if !ok {
		return false
	}
	drop, ok := g.nodes[dropID]
	if !ok || keepID == dropID {
		return false
	}

	for _, c := range drop.Citations {
		g.mergeCitation(keep, c)
	}
	if drop.Properties != nil {
		if keep.Properties == nil {
			keep.Properties = make(map[string]any)
		}
		for k, v := range drop.Properties {
			if _, exists := keep.Properties[k]; !exists {
				keep.Properties[k] = v
			}
		}
	}
	keep.Type = mergedType
	keep.Layer = g.policy.LayerOf(mergedType)

	for _, rel := range g.links {
		if rel.SourceID == dropID {
			rel.SourceID = keepID
		}
		if rel.TargetID == dropID {
			rel.TargetID = keepID
		}
	}
	delete(g.nodes, dropID)
	order := g.order[:0]
	for _, oid := range g.order {
		if oid != dropID {
			order = append(order, oid)
		}
	}
	g.order = order

	// Drop self-loops created by the rewiring.
	kept := g.links[:0]
	for _, rel := range g.links {
		if rel.SourceID != rel.TargetID {
			kept = append(kept, rel)
		}
	}
	g.links = kept

	g.rebuildIndices()
	return true
}

// Entities returns all entities in insertion order.
func (g *KnowledgeGraph) Entities() []*Entity {
	return g.resolve(g.order)
}

// RelationList returns all relations.
func (g *KnowledgeGraph) RelationList() []*Relation {
	return g.links
}

// Files returns every file path present in the file index, rebuilt on demand
// when empty.
func (g *KnowledgeGraph) Files() []string {
	if len(g.fileIndex) == 0 && len(g.nodes) > 0 {
		g.rebuildIndices()
	}
	files := make([]string, 0, len(g.fileIndex))
	for f := range g.fileIndex {
		files = append(files, f)
	}
	return files
}

// Stats summarizes graph contents.
func (g *KnowledgeGraph) Stats() Stats {
	s := Stats{
		NodeCount:     len(g.nodes),
		EdgeCount:     len(g.links),
		EntityTypes:   make(map[string]int),
		RelationTypes: make(map[string]int),
		Layers:        make(map[string]int),
	}
	files := make(map[string]bool)
	for _, e := range g.nodes {
		s.EntityTypes[e.Type]++
		if e.Layer != "" {
			s.Layers[e.Layer]++
		}
		for _, c := range e.Citations {
			if c.FilePath != "" {
				files[c.FilePath] = true
			}
		}
	}
	for _, rel := range g.links {
		s.RelationTypes[rel.Type]++
	}
	s.FileCount = len(files)
	return s
}

// SetSchema stores a discovered schema extension alongside the graph.
func (g *KnowledgeGraph) SetSchema(schema map[string]any) {
	g.schema = schema
}

// Schema returns the stored schema extension.
func (g *KnowledgeGraph) Schema() map[string]any {
	return g.schema
}

// rebuildIndices reconstructs every auxiliary index from the node collection.
// The indices are a cache over the authoritative node list and are safe to
// regenerate at any time, including after loading legacy files.
func (g *KnowledgeGraph) rebuildIndices() {
	g.nameIndex = make(map[string][]string)
	g.typeIndex = make(map[string][]string)
	g.fileIndex = make(map[string][]string)
	g.sourceDocIndex = make(map[string][]string)
	for _, id := range g.order {
		if e, ok := g.nodes[id]; ok {
			g.indexEntity(e)
		}
	}
}

// resolve maps ids to live entities, skipping stale index entries.
func (g *KnowledgeGraph) resolve(ids []string) []*Entity {
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.nodes[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
