// Package graph provides a typed, dynamically-constructed directed graph
// executor for multi-step agent workflows.
//
// A graph is a registry of named nodes connected by static edges and
// routers. Each node computes a partial state update; the executor merges
// updates into the run state through a Schema whose per-field reducers
// decide how values combine (overwrite, append, dedupe). Routers inspect
// the merged state and return the next node, the END terminal, or a fan-out
// of parallel branches.
//
// # Quick start
//
//	type State struct {
//		Log []string
//	}
//
//	schema := graph.NewStructSchema[State]()
//	schema.RegisterReducer("Log", graph.Append)
//
//	g := graph.NewStateGraph[State]()
//	g.SetSchema(schema)
//	g.AddNode("hello", "Say hello", func(ctx context.Context, s State) (State, error) {
//		return State{Log: []string{"hello"}}, nil
//	})
//	g.AddEdge("hello", graph.END)
//	g.SetEntryPoint("hello")
//
//	app, _ := g.Compile()
//	final, _ := app.Invoke(ctx, State{})
//
// # Fan-out and fan-in
//
// A router may return graph.FanOut(join, branches...). Branches run
// concurrently, each with an input captured by value; the executor performs
// a barrier join and merges the buffered outputs in branch-index order, so
// merged append-only fields are deterministic regardless of completion
// order. A cancelled context discards all branch outputs without merging.
//
// # Sub-graphs
//
// AddSubgraph composes a compiled graph with its own state type as a single
// node of a parent graph, bridged by projection functions.
package graph
