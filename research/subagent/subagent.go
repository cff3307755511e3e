package subagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/tool"
)

// Retriever is the search collaborator the sub-agent fans queries out to.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]tool.Document, error)
}

// SearchState is the sub-agent's own state schema, independent of the parent
// graph's RunState.
type SearchState struct {
	// Question is the original question used for relevance scoring.
	Question string

	// Queries are the search queries to fan out.
	Queries []string

	// TopK caps the reranked result set. Zero means no cap.
	TopK int

	// Retrieved accumulates raw per-query results across branches.
	Retrieved []tool.Document

	// Documents is the deduplicated, reranked result set.
	Documents []tool.Document

	// LogMessages is the sub-agent's diagnostic trail.
	LogMessages []string
}

// Input is the narrow projection of parent state the sub-agent needs.
type Input struct {
	Question string
	Queries  []string
	TopK     int
}

// Output is what the sub-agent contributes back to the parent.
type Output struct {
	Documents   []tool.Document
	LogMessages []string
}

const (
	nodeDispatch = "dispatch"
	nodeRerank   = "rerank"
)

// Agent is a self-contained search sub-graph: it fans one branch out per
// query, deduplicates the retrieved documents by ID, and reranks them
// against the question. The parent composes it as a single opaque step.
type Agent struct {
	retriever   Retriever
	reranker    *Reranker
	maxParallel int
	runnable    *graph.Runnable[SearchState]
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxParallel caps the number of concurrent query branches.
func WithMaxParallel(n int) AgentOption {
	return func(a *Agent) {
		a.maxParallel = n
	}
}

// WithReranker replaces the default lexical reranker.
func WithReranker(r *Reranker) AgentOption {
	return func(a *Agent) {
		a.reranker = r
	}
}

// New builds the sub-agent around a retriever.
func New(retriever Retriever, opts ...AgentOption) (*Agent, error) {
	a := &Agent{
		retriever:   retriever,
		reranker:    NewReranker(),
		maxParallel: 3,
	}
	for _, opt := range opts {
		opt(a)
	}

	runnable, err := a.buildGraph()
	if err != nil {
		return nil, err
	}
	a.runnable = runnable
	return a, nil
}

func newSchema() *graph.StructSchema[SearchState] {
	s := graph.NewStructSchema[SearchState]()
	s.RegisterReducer("Retrieved", graph.Append)
	s.RegisterReducer("LogMessages", graph.Append)
	return s
}

func (a *Agent) buildGraph() (*graph.Runnable[SearchState], error) {
	g := graph.NewStateGraph[SearchState]()
	g.SetSchema(newSchema())

	g.AddNode(nodeDispatch, "fans queries out to the retriever", func(ctx context.Context, state SearchState) (SearchState, error) {
		return SearchState{}, nil
	})
	g.AddNode(nodeRerank, "dedupes and reranks retrieved documents", a.rerank)

	g.AddRouter(nodeDispatch, a.dispatch)
	g.AddEdge(nodeRerank, graph.END)

	g.SetEntryPoint(nodeDispatch)
	return g.Compile()
}

// dispatch fans one branch out per query. A retriever failure degrades to a
// log message so sibling queries still contribute.
func (a *Agent) dispatch(ctx context.Context, state SearchState) (graph.Route[SearchState], error) {
	queries := state.Queries
	if a.maxParallel > 0 && len(queries) > a.maxParallel {
		queries = queries[:a.maxParallel]
	}
	if len(queries) == 0 {
		return graph.Goto[SearchState](nodeRerank), nil
	}

	branches := make([]graph.Branch[SearchState], 0, len(queries))
	for i, q := range queries {
		query := q
		index := i
		branches = append(branches, graph.Branch[SearchState]{
			Name:  "retrieve",
			Index: index,
			Run: func(ctx context.Context) (SearchState, error) {
				if err := ctx.Err(); err != nil {
					return SearchState{}, err
				}
				docs, err := a.retriever.Retrieve(ctx, query)
				if err != nil {
					return SearchState{
						LogMessages: []string{fmt.Sprintf("query %d: retrieval failed: %v", index, err)},
					}, nil
				}
				return SearchState{
					Retrieved:   docs,
					LogMessages: []string{fmt.Sprintf("query %d: %d documents", index, len(docs))},
				}, nil
			},
		})
	}
	return graph.FanOut(nodeRerank, branches...), nil
}

// rerank deduplicates the raw results by document ID and orders them by
// relevance to the question.
func (a *Agent) rerank(ctx context.Context, state SearchState) (SearchState, error) {
	seen := make(map[string]bool, len(state.Retrieved))
	deduped := make([]tool.Document, 0, len(state.Retrieved))
	for _, d := range state.Retrieved {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		deduped = append(deduped, d)
	}

	ranked := a.reranker.Rerank(state.Question, deduped)
	if state.TopK > 0 && len(ranked) > state.TopK {
		ranked = ranked[:state.TopK]
	}

	return SearchState{
		Documents: ranked,
		LogMessages: []string{fmt.Sprintf("reranked %d documents (%d after dedupe)",
			len(ranked), len(deduped))},
	}, nil
}

// Run executes the sub-graph to completion and returns its contribution.
func (a *Agent) Run(ctx context.Context, in Input) (*Output, error) {
	final, err := a.runnable.Invoke(ctx, SearchState{
		Question: in.Question,
		Queries:  in.Queries,
		TopK:     in.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("search sub-agent: %w", err)
	}
	return &Output{
		Documents:   final.Documents,
		LogMessages: final.LogMessages,
	}, nil
}

// Runnable exposes the compiled sub-graph so a parent can embed it directly
// with graph.AddSubgraph.
func (a *Agent) Runnable() *graph.Runnable[SearchState] {
	return a.runnable
}

// searchTool adapts the sub-agent to the orchestrator tool contract, so the
// parent graph sees the whole sub-graph as one tool.
type searchTool struct {
	agent *Agent
	name  string
	cost  float64
	topK  int
}

// AsTool wraps the agent as an orchestrator tool with the given name, budget
// cost and result cap.
func (a *Agent) AsTool(name string, cost float64, topK int) tool.Tool {
	return &searchTool{agent: a, name: name, cost: cost, topK: topK}
}

func (t *searchTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:            t.name,
		Path:            t.name,
		RequiresQueries: true,
		Cost:            t.cost,
	}
}

func (t *searchTool) Invoke(ctx context.Context, queries []string) (*tool.Result, error) {
	question := ""
	if len(queries) > 0 {
		question = queries[0]
	}
	out, err := t.agent.Run(ctx, Input{Question: question, Queries: queries, TopK: t.topK})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for i, d := range out.Documents {
		fmt.Fprintf(&sb, "%d. %s (%s)\n%s\n\n", i+1, d.Title, d.Link, d.Content)
	}
	return &tool.Result{
		Answer:    strings.TrimSpace(sb.String()),
		Documents: out.Documents,
	}, nil
}

// ToolRetriever adapts any orchestrator tool that returns documents (for
// example BraveSearch) into a Retriever.
type ToolRetriever struct {
	Tool tool.Tool
}

// Retrieve runs the wrapped tool with a single query.
func (r ToolRetriever) Retrieve(ctx context.Context, query string) ([]tool.Document, error) {
	result, err := r.Tool.Invoke(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return result.Documents, nil
}
