package source

import "strings"

// Chunker splits document content into overlapping windows so extraction
// prompts stay within model limits. Chunk boundaries prefer line breaks over
// hard cuts.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the target chunk size in bytes (default 4000).
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap carried between chunks (default 200).
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.chunkOverlap = overlap
		}
	}
}

// NewChunker creates a Chunker.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{chunkSize: 4000, chunkOverlap: 200}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkOverlap >= c.chunkSize {
		c.chunkOverlap = c.chunkSize / 4
	}
	return c
}

// Split returns the content as one or more chunks. Content at or below the
// chunk size is returned as a single chunk.
func (c *Chunker) Split(content string) []string {
	if len(content) <= c.chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + c.chunkSize
		if end >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}
		// Back up to the nearest line break to avoid splitting mid-line.
		cut := strings.LastIndexByte(content[start:end], '\n')
		if cut > c.chunkSize/2 {
			end = start + cut + 1
		}
		chunks = append(chunks, content[start:end])
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
