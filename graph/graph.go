package graph

import "context"

// END is a special constant used to represent the terminal node in the graph.
const END = "END"

// Node represents a unit of work in the graph. Given the current state it
// produces a partial state update which the executor merges through the
// graph's schema.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function computes a partial state update from the current state.
	// The returned value is merged into the run state by the executor;
	// fields left at their zero value are treated as absent unless the
	// schema declares a reducer for them.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge represents a static edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}

// Branch is one unit of a fan-out. Its closure captures an isolated input
// by value; it must not hold a reference to the parent's mutable state.
// The returned value is a partial state update, buffered by the executor
// until every branch of the fan-out has completed.
type Branch[S any] struct {
	// Name identifies the branch in errors and events.
	Name string

	// Index is the branch's position within the fan-out. Merges are applied
	// in ascending Index order regardless of completion order.
	Index int

	// Run executes the branch and returns its partial state update.
	Run func(ctx context.Context) (S, error)
}

// Route is the decision produced by a Router: a single next node, the END
// terminal, or a fan-out of parallel branches followed by a join node.
type Route[S any] struct {
	// To is the next node to execute, or END. When Branches is non-empty,
	// To is the join node executed after all branches have been merged.
	To string

	// Branches, when non-empty, are dispatched for concurrent execution.
	Branches []Branch[S]
}

// Router decides the next step after a node, given a read-only snapshot of
// the merged state. Returning an error aborts the run.
type Router[S any] func(ctx context.Context, state S) (Route[S], error)

// Goto routes to a single next node.
func Goto[S any](node string) Route[S] {
	return Route[S]{To: node}
}

// Finish routes to the END terminal.
func Finish[S any]() Route[S] {
	return Route[S]{To: END}
}

// FanOut dispatches branches for concurrent execution and continues at the
// join node once all of them have been merged.
func FanOut[S any](join string, branches ...Branch[S]) Route[S] {
	return Route[S]{To: join, Branches: branches}
}
