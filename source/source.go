// Package source defines the document source collaborator consumed by the
// ingestion pipeline: anything that can enumerate documents as (content,
// path, metadata) and fetch file content on demand.
package source

import "context"

// Document is one unit of ingestible content.
type Document struct {
	ID       string
	Content  string
	FilePath string
	Metadata map[string]any
}

// Source yields documents for ingestion. Branch selection is advisory;
// sources without branches ignore it.
type Source interface {
	// Name identifies the source toolkit (e.g. "github", "jira", "files").
	Name() string
	// ListDocuments enumerates documents, filtered by glob whitelist and
	// blacklist patterns. Enumeration order is stable for a given source
	// state so checkpoints reflect a linear processing order.
	ListDocuments(ctx context.Context, branch string, whitelist, blacklist []string) ([]Document, error)
	// ReadFile fetches the content of a single file, used for retrieval-time
	// citation resolution.
	ReadFile(ctx context.Context, path string) (string, error)
}
