// Package postgres implements checkpoint.Store backed by PostgreSQL for
// setups with a central operational database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracewire/inventorygraph/checkpoint"
)

// DBPool is the subset of pgxpool.Pool the store needs. Kept as an interface
// so tests can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements checkpoint.Store using PostgreSQL.
type Store struct {
	pool      DBPool
	tableName string
}

// Options configures the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // Default "ingestion_checkpoints"
}

// New creates a connection pool and a store on top of it.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewWithPool(pool, opts.TableName), nil
}

// NewWithPool creates a store over an existing pool.
func NewWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "ingestion_checkpoints"
	}
	return &Store{pool: pool, tableName: tableName}
}

// InitSchema creates the checkpoint table if it doesn't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save stores or replaces the checkpoint for its source.
func (s *Store) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (source, run_id, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, cp.Source, cp.RunID, data, cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for a source.
func (s *Store) Load(ctx context.Context, source string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE source = $1", s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, source).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w for source %s", checkpoint.ErrNotFound, source)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for a source.
func (s *Store) Delete(ctx context.Context, source string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE source = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, source); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
