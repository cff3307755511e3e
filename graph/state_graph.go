package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StateGraph represents a state-based graph with compile-time type safety.
// The type parameter S is the state type threaded through the run.
//
// Control flow is single-threaded: one node executes at a time and its
// partial update is merged through the schema before the next routing
// decision. Concurrency is confined to fan-out branches, whose outputs are
// buffered and merged in branch-index order once the whole fan-out has
// completed.
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node[S]

	// edges is a slice of Edge objects representing static connections
	edges []Edge

	// routers maps a "From" node to a Router that decides the next step
	routers map[string]Router[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// schema defines the state structure and merge logic
	schema Schema[S]
}

// NewStateGraph creates a new instance of StateGraph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:   make(map[string]Node[S]),
		routers: make(map[string]Router[S]),
	}
}

// AddNode adds a new node to the state graph with the given name, description
// and function.
func (g *StateGraph[S]) AddNode(name, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddRouter attaches a router to the "from" node. The router is consulted
// after the node's update has been merged and takes precedence over static
// edges.
func (g *StateGraph[S]) AddRouter(from string, router Router[S]) {
	g.routers[from] = router
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetSchema sets the state schema for the graph.
func (g *StateGraph[S]) SetSchema(schema Schema[S]) {
	g.schema = schema
}

// Config carries per-invocation settings.
type Config struct {
	// MaxSteps bounds the number of node executions in one run.
	// Zero means DefaultMaxSteps.
	MaxSteps int

	// OnStep, if set, is called after each node's update has been merged,
	// with the node name and a snapshot of the merged state.
	OnStep func(node string, state any)
}

// DefaultMaxSteps is the step bound applied when Config.MaxSteps is zero.
// It is a backstop against cyclic graphs that never route to END; real
// termination policy belongs to the domain layer (budgets, iteration caps).
const DefaultMaxSteps = 128

// Runnable represents a compiled state graph that can be invoked.
type Runnable[S any] struct {
	graph *StateGraph[S]
}

// Compile validates the graph and returns a Runnable instance.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, NewConfigError("edge from unknown node %q", e.From)
		}
		if _, ok := g.nodes[e.To]; e.To != END && !ok {
			return nil, NewConfigError("edge to unknown node %q", e.To)
		}
	}
	return &Runnable[S]{graph: g}, nil
}

// Invoke executes the compiled state graph with the given input state and
// returns the terminal state.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	return r.InvokeWithConfig(ctx, initialState, nil)
}

// InvokeWithConfig executes the compiled state graph with the given input
// state and config.
func (r *Runnable[S]) InvokeWithConfig(ctx context.Context, initialState S, config *Config) (S, error) {
	var zero S

	state := initialState
	if r.graph.schema != nil {
		var err error
		state, err = r.graph.schema.Update(r.graph.schema.Init(), initialState)
		if err != nil {
			return zero, fmt.Errorf("failed to initialize state with schema: %w", err)
		}
	}

	maxSteps := DefaultMaxSteps
	if config != nil && config.MaxSteps > 0 {
		maxSteps = config.MaxSteps
	}

	current := r.graph.entryPoint
	for step := 0; current != END; step++ {
		if step >= maxSteps {
			return zero, fmt.Errorf("%w: %d", ErrMaxStepsExceeded, maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		update, err := node.Function(ctx, state)
		if err != nil {
			return zero, fmt.Errorf("error in node %s: %w", current, err)
		}

		state, err = r.merge(state, update)
		if err != nil {
			return zero, err
		}

		if config != nil && config.OnStep != nil {
			config.OnStep(current, state)
		}

		route, err := r.routeFrom(ctx, current, state)
		if err != nil {
			return zero, err
		}

		if len(route.Branches) > 0 {
			updates, err := r.executeBranches(ctx, current, route.Branches)
			if err != nil {
				return zero, err
			}
			for _, u := range updates {
				state, err = r.merge(state, u)
				if err != nil {
					return zero, err
				}
			}
			if config != nil && config.OnStep != nil {
				config.OnStep(current+":fan-in", state)
			}
		}

		current = route.To
	}

	return state, nil
}

// merge applies a partial update to the state through the schema. Without a
// schema the update replaces the state wholesale.
func (r *Runnable[S]) merge(state, update S) (S, error) {
	if r.graph.schema == nil {
		return update, nil
	}
	merged, err := r.graph.schema.Update(state, update)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("schema update failed: %w", err)
	}
	return merged, nil
}

// routeFrom determines the next route for a node: its router if one is
// attached, otherwise its single static edge.
func (r *Runnable[S]) routeFrom(ctx context.Context, from string, state S) (Route[S], error) {
	if router, ok := r.graph.routers[from]; ok {
		route, err := router(ctx, state)
		if err != nil {
			return Route[S]{}, fmt.Errorf("router for node %s: %w", from, err)
		}
		if route.To == "" {
			return Route[S]{}, NewInvariantError("router for node %s returned an empty target", from)
		}
		return route, nil
	}

	for _, edge := range r.graph.edges {
		if edge.From == from {
			return Goto[S](edge.To), nil
		}
	}
	return Route[S]{}, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}

// branchResult pairs a branch's partial update with its outcome so that the
// join step never has to distinguish a panic from an ordinary error.
type branchResult[S any] struct {
	index  int
	update S
	err    error
}

// executeBranches dispatches all branches of a fan-out concurrently, waits
// for the whole set (barrier join), and returns the partial updates ordered
// by branch index. If the context is cancelled, completed outputs are
// discarded and nothing is merged; if any branch fails, the fan-out fails
// as a whole.
func (r *Runnable[S]) executeBranches(ctx context.Context, from string, branches []Branch[S]) ([]S, error) {
	results := make([]branchResult[S], len(branches))

	var wg sync.WaitGroup
	for i, b := range branches {
		idx := i
		branch := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[idx] = branchResult[S]{
						index: branch.Index,
						err:   fmt.Errorf("panic in branch %s[%d]: %v", branch.Name, branch.Index, p),
					}
				}
			}()
			update, err := branch.Run(ctx)
			results[idx] = branchResult[S]{index: branch.Index, update: update, err: err}
		}()
	}
	wg.Wait()

	// Cancellation discards all outputs; merge is all-or-nothing per fan-out.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].index < results[b].index
	})

	updates := make([]S, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("%w: fan-out from %s, branch %d: %v", ErrBranchFailed, from, res.index, res.err)
		}
		updates = append(updates, res.update)
	}
	return updates, nil
}
