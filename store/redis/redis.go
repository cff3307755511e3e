// Package redis implements store.RunStore on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/agentgraph/research"
	"github.com/smallnest/agentgraph/store"
)

// RunStore implements store.RunStore using Redis. Runs are stored as JSON
// blobs and indexed in a sorted set by creation time for listing.
type RunStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.RunStore = (*RunStore)(nil)

// Options configuration for Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "agentgraph:"
	TTL      time.Duration // Expiration for runs, default 0 (no expiration)
}

// NewRunStore creates a new Redis run store.
func NewRunStore(opts Options) *RunStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:"
	}

	return &RunStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// NewRunStoreWithClient wraps an existing Redis client. Useful for testing
// against miniredis.
func NewRunStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RunStore {
	if prefix == "" {
		prefix = "agentgraph:"
	}
	return &RunStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RunStore) runKey(id string) string {
	return fmt.Sprintf("%srun:%s", s.prefix, id)
}

func (s *RunStore) indexKey() string {
	return s.prefix + "runs:by_created_at"
}

// Close closes the Redis client.
func (s *RunStore) Close() error {
	return s.client.Close()
}

// SaveResult stores a run result.
func (s *RunStore) SaveResult(ctx context.Context, result *research.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.runKey(result.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(result.CreatedAt.UnixNano()),
		Member: result.RunID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	return nil
}

// Load retrieves a run by ID.
func (s *RunStore) Load(ctx context.Context, runID string) (*research.RunResult, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var result research.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &result, nil
}

// List returns runs ordered most recent first.
func (s *RunStore) List(ctx context.Context, limit int) ([]*research.RunResult, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	results := make([]*research.RunResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Expired run still present in the index.
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Delete removes a run.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
