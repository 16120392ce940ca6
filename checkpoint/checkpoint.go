// Package checkpoint persists ingestion run state so interrupted runs resume
// where they stopped instead of re-extracting every document. One checkpoint
// exists per source; a completed run's checkpoint stays around as a receipt
// until the next run replaces it.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no checkpoint exists for a source.
var ErrNotFound = errors.New("checkpoint not found")

// FileFailure records one document that failed extraction, with the attempt
// count used to enforce the retry ceiling.
type FileFailure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Checkpoint is the saved state of one ingestion run.
type Checkpoint struct {
	RunID              string        `json:"run_id"`
	Source             string        `json:"source"`
	Phase              string        `json:"phase"`
	Completed          bool          `json:"completed"`
	StartedAt          time.Time     `json:"started_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	DocumentsProcessed int           `json:"documents_processed"`
	EntitiesAdded      int           `json:"entities_added"`
	RelationsAdded     int           `json:"relations_added"`
	ProcessedFiles     []string      `json:"processed_files"`
	FailedFiles        []FileFailure `json:"failed_files"`
	Errors             []string      `json:"errors"`
}

// New creates a fresh checkpoint for a source.
func New(runID, source string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		RunID:     runID,
		Source:    source,
		Phase:     "pending",
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes the update timestamp. Callers do this before Save so all
// stores persist the same value.
func (c *Checkpoint) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// IsProcessed reports whether a file already completed in this run.
func (c *Checkpoint) IsProcessed(path string) bool {
	for _, p := range c.ProcessedFiles {
		if p == path {
			return true
		}
	}
	return false
}

// MarkProcessed records a completed file and clears any failure entry left
// over from an earlier attempt.
func (c *Checkpoint) MarkProcessed(path string) {
	if c.IsProcessed(path) {
		return
	}
	c.ProcessedFiles = append(c.ProcessedFiles, path)
	c.DocumentsProcessed++
	c.ClearFailure(path)
}

// RecordFailure notes a failed file, incrementing the attempt count when the
// file already failed before.
func (c *Checkpoint) RecordFailure(path string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	for i := range c.FailedFiles {
		if c.FailedFiles[i].FilePath == path {
			c.FailedFiles[i].Attempts++
			c.FailedFiles[i].Error = msg
			return
		}
	}
	c.FailedFiles = append(c.FailedFiles, FileFailure{FilePath: path, Error: msg, Attempts: 1})
}

// Attempts returns how many times a file has failed, zero when it never did.
func (c *Checkpoint) Attempts(path string) int {
	for _, f := range c.FailedFiles {
		if f.FilePath == path {
			return f.Attempts
		}
	}
	return 0
}

// ClearProcessed removes a file from the processed set so a later run
// re-extracts it. Used by delta updates.
func (c *Checkpoint) ClearProcessed(path string) {
	for i, p := range c.ProcessedFiles {
		if p == path {
			c.ProcessedFiles = append(c.ProcessedFiles[:i], c.ProcessedFiles[i+1:]...)
			c.DocumentsProcessed--
			return
		}
	}
}

// ClearFailure removes a file's failure entry, if any.
func (c *Checkpoint) ClearFailure(path string) {
	for i, f := range c.FailedFiles {
		if f.FilePath == path {
			c.FailedFiles = append(c.FailedFiles[:i], c.FailedFiles[i+1:]...)
			return
		}
	}
}

// Store persists checkpoints keyed by source name.
type Store interface {
	// Save stores or replaces the checkpoint for its source.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves the checkpoint for a source. Returns ErrNotFound when
	// none exists.
	Load(ctx context.Context, source string) (*Checkpoint, error)

	// Delete removes the checkpoint for a source. Deleting a missing
	// checkpoint is not an error.
	Delete(ctx context.Context, source string) error
}
