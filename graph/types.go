// Package graph implements the in-memory inventory knowledge graph: typed
// entities with citation tracking, directed relations, auxiliary indices,
// tiered search, impact analysis and JSON persistence.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Citation points at the source location that justified observing an entity.
// It is treated as an immutable value; two citations are considered the same
// observation when file path and line range match.
type Citation struct {
	FilePath      string `json:"file_path"`
	LineStart     int    `json:"line_start,omitempty"`
	LineEnd       int    `json:"line_end,omitempty"`
	SourceToolkit string `json:"source_toolkit,omitempty"`
	DocID         string `json:"doc_id,omitempty"`
	ContentHash   string `json:"content_hash,omitempty"`
}

// Key returns the deduplication key for a citation.
func (c Citation) Key() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.LineStart, c.LineEnd)
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Layer      string         `json:"layer,omitempty"`
	Citations  []Citation     `json:"citations,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Relation is a directed edge between two entities.
type Relation struct {
	SourceID      string         `json:"source_id"`
	TargetID      string         `json:"target_id"`
	Type          string         `json:"relation_type"`
	SourceToolkit string         `json:"source_toolkit,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// Stats summarizes graph contents.
type Stats struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	EntityTypes   map[string]int `json:"entity_types"`
	RelationTypes map[string]int `json:"relation_types"`
	Layers        map[string]int `json:"layers"`
	FileCount     int            `json:"file_count"`
}

// EntityID derives a stable entity id from name, type and an optional
// discriminator such as a file path. Extraction relies on this stability so
// re-observing an entity merges citations instead of creating duplicates.
func EntityID(name, entityType, discriminator string) string {
	h := sha256.Sum256([]byte(name + "\x00" + entityType + "\x00" + discriminator))
	return hex.EncodeToString(h[:12])
}

// ContentHash returns the hash used for idempotent extraction tracking.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}

// maxPropertyLength is the cutoff above which string property values are
// dropped: raw document content must never end up in the graph file.
const maxPropertyLength = 1000

// contentKeys are property names that carry raw document text and are always
// filtered out before storage.
var contentKeys = map[string]bool{
	"content": true,
	"text":    true,
	"raw":     true,
	"body":    true,
}

// FilterProperties returns a copy of props with content-bearing keys and
// overlong string values removed. Nil input yields nil.
func FilterProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	filtered := make(map[string]any, len(props))
	for k, v := range props {
		if contentKeys[k] {
			continue
		}
		if s, ok := v.(string); ok && len(s) >= maxPropertyLength {
			continue
		}
		filtered[k] = v
	}
	return filtered
}
