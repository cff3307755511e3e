package subagent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/tool"
)

type fakeRetriever struct {
	docs    map[string][]tool.Document
	failFor map[string]bool
	delay   map[string]time.Duration
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]tool.Document, error) {
	if d, ok := f.delay[query]; ok {
		time.Sleep(d)
	}
	if f.failFor[query] {
		return nil, fmt.Errorf("index unavailable for %q", query)
	}
	return f.docs[query], nil
}

func TestAgent_DedupesAcrossQueries(t *testing.T) {
	shared := tool.Document{ID: "shared", Title: "Shared doc", Score: 0.9}
	agent, err := New(&fakeRetriever{
		docs: map[string][]tool.Document{
			"q1": {{ID: "a", Title: "A", Score: 0.5}, shared},
			"q2": {shared, {ID: "b", Title: "B", Score: 0.4}},
		},
	})
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "anything", Queries: []string{"q1", "q2"}})
	require.NoError(t, err)

	ids := make(map[string]int)
	for _, d := range out.Documents {
		ids[d.ID]++
	}
	assert.Equal(t, map[string]int{"a": 1, "shared": 1, "b": 1}, ids)
}

func TestAgent_ReranksByRelevance(t *testing.T) {
	agent, err := New(&fakeRetriever{
		docs: map[string][]tool.Document{
			"q": {
				{ID: "off-topic", Title: "Cooking pasta", Content: "boil water"},
				{ID: "on-topic", Title: "Graph executors", Content: "graph executors merge state"},
			},
		},
	})
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "graph executors", Queries: []string{"q"}})
	require.NoError(t, err)
	require.Len(t, out.Documents, 2)
	assert.Equal(t, "on-topic", out.Documents[0].ID)
}

func TestAgent_TopK(t *testing.T) {
	agent, err := New(&fakeRetriever{
		docs: map[string][]tool.Document{
			"q": {{ID: "a"}, {ID: "b"}, {ID: "c"}},
		},
	})
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "x", Queries: []string{"q"}, TopK: 2})
	require.NoError(t, err)
	assert.Len(t, out.Documents, 2)
}

func TestAgent_RetrieverFailureDegrades(t *testing.T) {
	agent, err := New(&fakeRetriever{
		docs:    map[string][]tool.Document{"q2": {{ID: "b", Title: "B"}}},
		failFor: map[string]bool{"q1": true},
	})
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "x", Queries: []string{"q1", "q2"}})
	require.NoError(t, err)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "b", out.Documents[0].ID)

	var failureLogged bool
	for _, msg := range out.LogMessages {
		if msg == "query 0: retrieval failed: index unavailable for \"q1\"" {
			failureLogged = true
		}
	}
	assert.True(t, failureLogged)
}

func TestAgent_MaxParallelCap(t *testing.T) {
	retriever := &fakeRetriever{
		docs: map[string][]tool.Document{
			"q1": {{ID: "a"}},
			"q2": {{ID: "b"}},
			"q3": {{ID: "c"}},
		},
	}
	agent, err := New(retriever, WithMaxParallel(2))
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "x", Queries: []string{"q1", "q2", "q3"}})
	require.NoError(t, err)
	assert.Len(t, out.Documents, 2)
}

func TestAgent_NoQueries(t *testing.T) {
	agent, err := New(&fakeRetriever{})
	require.NoError(t, err)

	out, err := agent.Run(context.Background(), Input{Question: "x"})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
}

func TestAgent_AsTool(t *testing.T) {
	agent, err := New(&fakeRetriever{
		docs: map[string][]tool.Document{
			"q1": {{ID: "a", Title: "A", Link: "https://example.com/a", Content: "alpha"}},
		},
	})
	require.NoError(t, err)

	searchTool := agent.AsTool("internal_search", 1.0, 5)
	desc := searchTool.Descriptor()
	assert.Equal(t, "internal_search", desc.Name)
	assert.Equal(t, 1.0, desc.Cost)
	assert.True(t, desc.RequiresQueries)

	result, err := searchTool.Invoke(context.Background(), []string{"q1"})
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Contains(t, result.Answer, "A (https://example.com/a)")
	assert.Contains(t, result.Answer, "alpha")
}

type docTool struct {
	docs []tool.Document
	err  error
}

func (d *docTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{Name: "docs", RequiresQueries: true, Cost: 1.0}
}

func (d *docTool) Invoke(ctx context.Context, queries []string) (*tool.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &tool.Result{Documents: d.docs}, nil
}

func TestToolRetriever(t *testing.T) {
	docs := []tool.Document{{ID: "a", Title: "A"}}
	r := ToolRetriever{Tool: &docTool{docs: docs}}

	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, docs, got)

	boom := errors.New("boom")
	r = ToolRetriever{Tool: &docTool{err: boom}}
	_, err = r.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestReranker_CombinesScores(t *testing.T) {
	r := NewReranker()
	docs := []tool.Document{
		{ID: "low-score-relevant", Content: "graphs graphs graphs", Score: 0.1},
		{ID: "high-score-irrelevant", Content: "nothing here", Score: 0.2},
	}

	ranked := r.Rerank("graphs", docs)
	require.Len(t, ranked, 2)
	assert.Equal(t, "low-score-relevant", ranked[0].ID)

	// Input order untouched.
	assert.Equal(t, "low-score-relevant", docs[0].ID)
	assert.Equal(t, 0.1, docs[0].Score)
}
