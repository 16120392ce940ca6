// Package redis implements checkpoint.Store backed by Redis for setups where
// ingestion workers on different hosts share run state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tracewire/inventorygraph/checkpoint"
)

// Store implements checkpoint.Store using Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "invgraph:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// New creates a Redis checkpoint store.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "invgraph:"
	}

	return &Store{client: client, prefix: prefix, ttl: opts.TTL}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(source string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, source)
}

// Save stores or replaces the checkpoint for its source.
func (s *Store) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cp.Source), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for a source.
func (s *Store) Load(ctx context.Context, source string) (*checkpoint.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(source)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w for source %s", checkpoint.ErrNotFound, source)
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for a source.
func (s *Store) Delete(ctx context.Context, source string) error {
	if err := s.client.Del(ctx, s.key(source)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
