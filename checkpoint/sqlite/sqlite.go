// Package sqlite implements checkpoint.Store backed by SQLite for setups
// where several ingestion processes share one machine-local database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tracewire/inventorygraph/checkpoint"
)

// Store implements checkpoint.Store using SQLite.
type Store struct {
	db        *sql.DB
	tableName string
}

// Options configures the SQLite connection.
type Options struct {
	Path      string
	TableName string // Default "ingestion_checkpoints"
}

// New opens the database and ensures the schema exists.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "ingestion_checkpoints"
	}

	s := &Store{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores or replaces the checkpoint for its source.
func (s *Store) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (source, run_id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			run_id = excluded.run_id,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, cp.Source, cp.RunID, string(data), cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for a source.
func (s *Store) Load(ctx context.Context, source string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE source = ?", s.tableName)

	var data string
	err := s.db.QueryRowContext(ctx, query, source).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w for source %s", checkpoint.ErrNotFound, source)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for a source.
func (s *Store) Delete(ctx context.Context, source string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE source = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, source); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
