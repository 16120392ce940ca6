package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists checkpoints as JSON files named
// .ingestion-checkpoint-<source>.json inside a directory. It is the default
// store; the sqlite, redis and postgres subpackages cover shared setups.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the checkpoint file path for a source.
func (s *FileStore) Path(source string) string {
	return filepath.Join(s.dir, fmt.Sprintf(".ingestion-checkpoint-%s.json", sanitizeSource(source)))
}

// Save writes the checkpoint via a temp file and rename so a crash mid-write
// never leaves a truncated checkpoint behind.
func (s *FileStore) Save(_ context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := s.Path(cp.Source)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint for a source.
func (s *FileStore) Load(_ context.Context, source string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path(source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for source %s", ErrNotFound, source)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint file for a source.
func (s *FileStore) Delete(_ context.Context, source string) error {
	err := os.Remove(s.Path(source))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// sanitizeSource keeps source names filesystem-safe.
func sanitizeSource(source string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, source)
}
