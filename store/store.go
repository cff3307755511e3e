package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/smallnest/agentgraph/research"
)

// ErrNotFound is returned when no run exists for the requested ID.
var ErrNotFound = errors.New("run not found")

// RunStore persists completed research runs. Every implementation also
// satisfies research.ResultWriter, so a store can be handed straight to
// research.WithWriter.
type RunStore interface {
	research.ResultWriter

	// Load retrieves a run by its ID.
	Load(ctx context.Context, runID string) (*research.RunResult, error)

	// List returns runs ordered most recent first, up to limit. A
	// non-positive limit returns all runs.
	List(ctx context.Context, limit int) ([]*research.RunResult, error)

	// Delete removes a run. Deleting a missing run is not an error.
	Delete(ctx context.Context, runID string) error
}

// MemoryStore is an in-memory RunStore for tests and single-process use.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*research.RunResult
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*research.RunResult),
	}
}

// SaveResult stores a run result, overwriting any previous result with the
// same ID.
func (s *MemoryStore) SaveResult(ctx context.Context, result *research.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	s.runs[result.RunID] = &copied
	return nil
}

// Load retrieves a run by ID.
func (s *MemoryStore) Load(ctx context.Context, runID string) (*research.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *result
	return &copied, nil
}

// List returns runs ordered most recent first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*research.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*research.RunResult, 0, len(s.runs))
	for _, r := range s.runs {
		copied := *r
		results = append(results, &copied)
	}
	sort.Slice(results, func(a, b int) bool {
		return results[a].CreatedAt.After(results[b].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a run.
func (s *MemoryStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}
