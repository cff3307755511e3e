package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/research"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
)

func testStore(t *testing.T) (*RunStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRunStore(Options{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func sampleRun(id string, createdAt time.Time) *research.RunResult {
	return &research.RunResult{
		RunID:       id,
		Question:    "question for " + id,
		FinalAnswer: "answer for " + id,
		IterationResponses: []research.IterationAnswer{
			{Tool: "web_search", IterationNr: 1, Question: "q1", Answer: "a1"},
		},
		CitedDocuments: []tool.Document{{ID: "a", Title: "A"}},
		CreatedAt:      createdAt,
	}
}

func TestRunStore_SaveLoad(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now())
	require.NoError(t, s.SaveResult(ctx, run))

	loaded, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Question, loaded.Question)
	assert.Equal(t, run.FinalAnswer, loaded.FinalAnswer)
	assert.Equal(t, run.IterationResponses, loaded.IterationResponses)
	assert.Equal(t, run.CitedDocuments, loaded.CitedDocuments)
}

func TestRunStore_LoadNotFound(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStore_ListOrdering(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveResult(ctx, sampleRun("old", now.Add(-2*time.Hour))))
	require.NoError(t, s.SaveResult(ctx, sampleRun("new", now)))
	require.NoError(t, s.SaveResult(ctx, sampleRun("mid", now.Add(-time.Hour))))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "mid", runs[1].RunID)
	assert.Equal(t, "old", runs[2].RunID)

	runs, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunStore_Delete(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, sampleRun("run-1", time.Now())))
	require.NoError(t, s.Delete(ctx, "run-1"))

	_, err := s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewRunStoreWithClient(client, "", time.Minute)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveResult(ctx, sampleRun("run-1", time.Now())))

	mr.FastForward(2 * time.Minute)

	_, err = s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
