package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/stream"
	"github.com/smallnest/agentgraph/tool"
)

var errModelDown = errors.New("model down")

type memWriter struct {
	mu    sync.Mutex
	saved []*RunResult
	err   error
}

func (w *memWriter) SaveResult(ctx context.Context, result *RunResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.saved = append(w.saved, result)
	return nil
}

func testRunner(t *testing.T, model *scriptedModel, writer ResultWriter, tools ...tool.Tool) *Runner {
	t.Helper()
	registry := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	opts := []RunnerOption{WithLogger(&log.NoOpLogger{})}
	if writer != nil {
		opts = append(opts, WithWriter(writer))
	}
	return NewRunner(DefaultConfig(), model, registry, opts...)
}

func drainAll(t *testing.T, h *Handle) ([]stream.Packet, error) {
	t.Helper()
	var packets []stream.Packet
	done := make(chan error, 1)
	go func() {
		done <- h.Drain(func(p stream.Packet) error {
			packets = append(packets, p)
			return nil
		})
	}()
	select {
	case err := <-done:
		return packets, err
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate")
		return nil, nil
	}
}

// TestRun_SearchScenario drives a full run: three queries fan out to three
// branches, the dispatch is billed once, and a second orchestrator pass
// finalizes. Branch delays are reversed so completion order differs from
// branch order.
func TestRun_SearchScenario(t *testing.T) {
	model := &scriptedModel{
		replies: []string{
			`{"tool": "web_search", "queries": ["q1", "q2", "q3"], "reasoning": "decompose"}`,
			`{"tool": "CLOSER"}`,
		},
		closing: "the final answer",
	}
	shared := tool.Document{ID: "shared", Title: "Shared", Link: "https://example.com/shared"}
	search := &fakeSearch{
		name: "web_search",
		cost: 1.0,
		docs: map[string][]tool.Document{
			"q1": {{ID: "a", Title: "A"}, shared},
			"q2": {shared, {ID: "b", Title: "B"}},
			"q3": {{ID: "c", Title: "C"}},
		},
		delay: map[string]time.Duration{
			"q1": 30 * time.Millisecond,
			"q2": 10 * time.Millisecond,
		},
	}
	writer := &memWriter{}
	runner := testRunner(t, model, writer, search)

	h := runner.Start(context.Background(), "the question", "")
	packets, err := drainAll(t, h)
	require.NoError(t, err)

	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "the final answer", result.FinalAnswer)
	assert.Equal(t, "the question", result.Question)
	assert.NotEmpty(t, result.RunID)

	// Three answers, ordered by branch index despite reversed completion.
	require.Len(t, result.IterationResponses, 3)
	for i, a := range result.IterationResponses {
		assert.Equal(t, i, a.ParallelizationNr)
		assert.Equal(t, 1, a.IterationNr)
		assert.False(t, a.Failed)
	}
	assert.Equal(t, "q1", result.IterationResponses[0].Question)
	assert.Equal(t, "q2", result.IterationResponses[1].Question)
	assert.Equal(t, "q3", result.IterationResponses[2].Question)

	// The shared document is deduplicated, first occurrence winning.
	ids := make([]string, 0, len(result.CitedDocuments))
	for _, d := range result.CitedDocuments {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "shared", "b", "c"}, ids)

	// One dispatch billed once, not once per branch.
	assert.Contains(t, result.LogMessages, "billed 1.0 for web_search, 1.0 remaining")

	// The run was persisted.
	require.Len(t, writer.saved, 1)
	assert.Equal(t, result.RunID, writer.saved[0].RunID)

	// Exactly one terminal packet, and the final answer was streamed.
	var terminals, deltas int
	for _, p := range packets {
		if p.Terminal() {
			terminals++
		}
		if p.Kind == stream.KindMessageDelta {
			deltas++
			assert.Equal(t, "the final answer", p.Text)
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, stream.KindOverallStop, packets[len(packets)-1].Kind)
	assert.Equal(t, 1, deltas)
}

func TestRun_BranchFailureDoesNotAbortSiblings(t *testing.T) {
	model := &scriptedModel{
		replies: []string{
			`{"tool": "web_search", "queries": ["q1", "q2"]}`,
			`{"tool": "CLOSER"}`,
		},
		closing: "best effort answer",
	}
	search := &fakeSearch{
		name:    "web_search",
		cost:    1.0,
		docs:    map[string][]tool.Document{"q2": {{ID: "b", Title: "B"}}},
		failFor: map[string]bool{"q1": true},
	}
	runner := testRunner(t, model, nil, search)

	h := runner.Start(context.Background(), "the question", "")
	_, err := drainAll(t, h)
	require.NoError(t, err)

	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, result.IterationResponses, 2)
	assert.True(t, result.IterationResponses[0].Failed)
	assert.False(t, result.IterationResponses[1].Failed)
	assert.Equal(t, "best effort answer", result.FinalAnswer)
}

func TestRun_ModelFailureTerminatesStream(t *testing.T) {
	runner := testRunner(t, &scriptedModel{err: errModelDown}, nil)

	h := runner.Start(context.Background(), "the question", "")
	packets, err := drainAll(t, h)
	assert.ErrorIs(t, err, errModelDown)
	require.NotEmpty(t, packets)
	assert.Equal(t, stream.KindException, packets[len(packets)-1].Kind)

	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, errModelDown)
}

func TestRun_WriterFailureTerminatesStream(t *testing.T) {
	model := &scriptedModel{
		replies: []string{`{"tool": "CLOSER"}`},
		closing: "answer",
	}
	writer := &memWriter{err: errors.New("disk full")}
	runner := testRunner(t, model, writer)

	h := runner.Start(context.Background(), "the question", "")
	_, err := drainAll(t, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_Cancellation(t *testing.T) {
	model := &scriptedModel{
		replies: []string{`{"tool": "web_search", "queries": ["q1"]}`},
		closing: "never reached",
	}
	search := &fakeSearch{
		name:  "web_search",
		cost:  1.0,
		delay: map[string]time.Duration{"q1": time.Second},
	}
	runner := testRunner(t, model, nil, search)

	ctx, cancel := context.WithCancel(context.Background())
	h := runner.Start(ctx, "the question", "")
	time.Sleep(20 * time.Millisecond)
	cancel()

	_, err := drainAll(t, h)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestBudgetMonotonicityProperty checks that the budget never increases
// across dispatches and that once it is exhausted the very next routing
// decision resolves to the closer, never a tool dispatch.
func TestBudgetMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("budget is non-increasing and exhaustion forces the closer", prop.ForAll(
		func(costTenths int, dispatches int) bool {
			cost := float64(costTenths) / 10.0
			tools := map[string]tool.Descriptor{
				"web_search": {Name: "web_search", RequiresQueries: true, Cost: cost},
			}
			e := testEngine(t, &scriptedModel{})

			budget := e.cfg.StartBudget
			for i := 0; i < dispatches; i++ {
				state := stateWith(tools, []string{"web_search"}, []string{"q"}, budget)
				route, err := e.decideNext(context.Background(), state)
				if err != nil {
					return false
				}
				if budget <= 0 {
					return route.To == NodeCloser && len(route.Branches) == 0
				}
				if route.To != NodeCollector {
					return false
				}
				update, err := e.collect(context.Background(), state)
				if err != nil || update.RemainingBudget == nil {
					return false
				}
				if *update.RemainingBudget > budget {
					return false
				}
				budget = *update.RemainingBudget
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
