package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion tags persisted graph files.
const SchemaVersion = "2.1"

// graphFile is the on-disk node-link representation. "links" is the written
// key; "edges" is accepted on load for format compatibility.
type graphFile struct {
	Nodes    []*Entity      `json:"nodes"`
	Links    []*Relation    `json:"links,omitempty"`
	Edges    []*Relation    `json:"edges,omitempty"`
	Indices  *graphIndices  `json:"_indices,omitempty"`
	Schema   map[string]any `json:"_schema,omitempty"`
	Metadata map[string]any `json:"_metadata,omitempty"`
}

type graphIndices struct {
	EntityIndex    map[string][]string `json:"entity_index"`
	TypeIndex      map[string][]string `json:"type_index"`
	FileIndex      map[string][]string `json:"file_index"`
	SourceDocIndex map[string][]string `json:"source_doc_index"`
}

// DumpToJSON writes the graph, its indices, schema and metadata to path,
// creating parent directories as needed. There is no background persistence;
// this is the only way mutations reach disk.
func (g *KnowledgeGraph) DumpToJSON(path string) error {
	g.metadata["last_saved"] = time.Now().UTC().Format(time.RFC3339)
	g.metadata["version"] = SchemaVersion

	file := graphFile{
		Nodes: g.Entities(),
		Links: g.links,
		Indices: &graphIndices{
			EntityIndex:    g.nameIndex,
			TypeIndex:      g.typeIndex,
			FileIndex:      g.fileIndex,
			SourceDocIndex: g.sourceDocIndex,
		},
		Schema:   g.schema,
		Metadata: g.metadata,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create graph directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}

// LoadFromJSON replaces the graph contents with the file at path. Both
// "links" and "edges" top-level keys are accepted. When indices are missing
// or empty (legacy files) they are rebuilt by a full scan.
func (g *KnowledgeGraph) LoadFromJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read graph file: %w", err)
	}

	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse graph file %s: %w", path, err)
	}

	g.nodes = make(map[string]*Entity, len(file.Nodes))
	g.order = g.order[:0]
	for _, e := range file.Nodes {
		if e == nil || e.ID == "" {
			continue
		}
		if e.Layer == "" {
			e.Layer = g.policy.LayerOf(e.Type)
		}
		if _, dup := g.nodes[e.ID]; dup {
			continue
		}
		g.nodes[e.ID] = e
		g.order = append(g.order, e.ID)
	}

	links := file.Links
	if len(links) == 0 {
		links = file.Edges
	}
	g.links = g.links[:0]
	for _, rel := range links {
		if rel == nil {
			continue
		}
		if _, ok := g.nodes[rel.SourceID]; !ok {
			g.logger.Warn("dropping persisted relation %s: source %q missing", rel.Type, rel.SourceID)
			continue
		}
		if _, ok := g.nodes[rel.TargetID]; !ok {
			g.logger.Warn("dropping persisted relation %s: target %q missing", rel.Type, rel.TargetID)
			continue
		}
		g.links = append(g.links, rel)
	}

	if file.Schema != nil {
		g.schema = file.Schema
	} else {
		g.schema = make(map[string]any)
	}
	if file.Metadata != nil {
		g.metadata = file.Metadata
	} else {
		g.metadata = make(map[string]any)
	}

	if file.Indices != nil && len(file.Indices.EntityIndex) > 0 {
		g.nameIndex = file.Indices.EntityIndex
		g.typeIndex = file.Indices.TypeIndex
		g.fileIndex = file.Indices.FileIndex
		g.sourceDocIndex = file.Indices.SourceDocIndex
		if g.typeIndex == nil || g.fileIndex == nil || g.sourceDocIndex == nil {
			g.rebuildIndices()
		}
	} else {
		g.rebuildIndices()
	}

	return nil
}

// Metadata returns the mutable metadata map persisted with the graph.
func (g *KnowledgeGraph) Metadata() map[string]any {
	return g.metadata
}
