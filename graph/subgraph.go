package graph

import (
	"context"
	"fmt"
)

// AddSubgraph adds a compiled sub-graph as a single opaque node of the
// parent graph. The sub-graph has its own state type T; project builds the
// sub-graph's input from the parent state, and collect converts the
// sub-graph's terminal state into a partial update for the parent, which is
// merged through the parent's schema like any other node result.
//
// The parent never observes the sub-graph's intermediate states.
func AddSubgraph[S, T any](g *StateGraph[S], name, description string, sub *Runnable[T], project func(S) T, collect func(T) S) {
	g.AddNode(name, description, func(ctx context.Context, state S) (S, error) {
		var zero S
		out, err := sub.Invoke(ctx, project(state))
		if err != nil {
			return zero, fmt.Errorf("subgraph %s execution failed: %w", name, err)
		}
		return collect(out), nil
	})
}
