package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type childState struct {
	Words  []string
	Joined string
}

func compileChild(t *testing.T, fail bool) *Runnable[childState] {
	t.Helper()
	g := NewStateGraph[childState]()
	schema := NewStructSchema[childState]()
	schema.RegisterReducer("Words", Append)
	g.SetSchema(schema)

	g.AddNode("join", "joins the words", func(ctx context.Context, s childState) (childState, error) {
		if fail {
			return childState{}, errors.New("child blew up")
		}
		return childState{Joined: strings.Join(s.Words, " ")}, nil
	})
	g.AddEdge("join", END)
	g.SetEntryPoint("join")

	runnable, err := g.Compile()
	require.NoError(t, err)
	return runnable
}

func TestAddSubgraph(t *testing.T) {
	child := compileChild(t, false)

	g := NewStateGraph[runState]()
	schema := NewStructSchema[runState]()
	schema.RegisterReducer("Visited", Append)
	schema.RegisterReducer("Answers", Append)
	g.SetSchema(schema)

	AddSubgraph(g, "child", "runs the child graph", child,
		func(s runState) childState {
			return childState{Words: s.Visited}
		},
		func(out childState) runState {
			return runState{Answers: []string{out.Joined}}
		},
	)
	g.AddEdge("child", END)
	g.SetEntryPoint("child")

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), runState{Visited: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c"}, final.Answers)
}

func TestAddSubgraph_ChildFailure(t *testing.T) {
	child := compileChild(t, true)

	g := NewStateGraph[runState]()
	AddSubgraph(g, "child", "runs the child graph", child,
		func(s runState) childState { return childState{} },
		func(out childState) runState { return runState{} },
	)
	g.AddEdge("child", END)
	g.SetEntryPoint("child")

	runnable, err := g.Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), runState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subgraph child execution failed")
	assert.Contains(t, err.Error(), "child blew up")
}
