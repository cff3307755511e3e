package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/stream"
	"github.com/smallnest/agentgraph/tool"
)

// engine wires the research graph for a single run. It owns no state of its
// own beyond its collaborators; all run state travels through RunState.
type engine struct {
	cfg     Config
	model   llm.Invoker
	tools   *tool.Registry
	emitter *stream.Emitter
	logger  log.Logger
}

func newEngine(cfg Config, model llm.Invoker, tools *tool.Registry, emitter *stream.Emitter, logger log.Logger) *engine {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &engine{
		cfg:     cfg,
		model:   model,
		tools:   tools,
		emitter: emitter,
		logger:  logger,
	}
}

// buildGraph assembles the research graph:
//
//	orchestrator --(decision router)--> fan-out --> collector
//	collector --(completeness router)--> orchestrator | closer
//	closer --> logger --> END
func (e *engine) buildGraph() (*graph.Runnable[RunState], error) {
	g := graph.NewStateGraph[RunState]()
	g.SetSchema(NewSchema())

	g.AddNode(NodeOrchestrator, "decides the next tool and queries", e.orchestrate)
	g.AddNode(NodeCollector, "bills the budget after a fan-in", e.collect)
	g.AddNode(NodeCloser, "streams the final answer", e.closeRun)
	g.AddNode(NodeLogger, "records the completed run", e.logRun)

	g.AddRouter(NodeOrchestrator, e.decideNext)
	g.AddRouter(NodeCollector, e.checkCompleteness)
	g.AddEdge(NodeCloser, NodeLogger)
	g.AddEdge(NodeLogger, graph.END)

	g.SetEntryPoint(NodeOrchestrator)
	return g.Compile()
}

// decision is the JSON shape the orchestrator model must reply with.
type decision struct {
	Tool      string   `json:"tool"`
	Queries   []string `json:"queries"`
	Reasoning string   `json:"reasoning"`
	Gaps      []string `json:"gaps"`
}

// orchestrate runs one orchestrator pass: ask the model which tool to use
// next, record the decision, and advance the iteration counter.
func (e *engine) orchestrate(ctx context.Context, state RunState) (RunState, error) {
	iteration := state.IterationNr + 1

	raw, err := e.model.Invoke(ctx, e.decisionPrompt(state))
	if err != nil {
		return RunState{}, fmt.Errorf("orchestrator model call: %w", err)
	}

	var d decision
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &d); err != nil {
		return RunState{}, fmt.Errorf("malformed orchestrator decision %q: %w", raw, err)
	}
	if d.Tool == "" {
		return RunState{}, graph.NewInvariantError("orchestrator decision names no tool")
	}

	update := RunState{
		IterationNr: iteration,
		QueryList:   d.Queries,
		Gaps:        d.Gaps,
	}

	toolName := d.Tool
	if strings.EqualFold(toolName, RouteCloser) && len(d.Gaps) > 0 &&
		state.NumCloserSuggestions+1 < e.cfg.MaxCloserSuggestions {
		// Finalization proposed while gaps remain open: block it and give
		// the orchestrator another pass, up to the suggestion cap.
		toolName = tool.ThinkingToolName
		update.NumCloserSuggestions = state.NumCloserSuggestions + 1
		update.LogMessages = append(update.LogMessages,
			fmt.Sprintf("iteration %d: finalization blocked by %d open gaps", iteration, len(d.Gaps)))
	}
	update.ToolsUsed = []string{toolName}
	update.LogMessages = append(update.LogMessages,
		fmt.Sprintf("iteration %d: tool=%s queries=%d", iteration, toolName, len(d.Queries)))

	e.logger.Debug("run iteration %d: tool=%s queries=%v", iteration, toolName, d.Queries)
	e.emitter.Emit(stream.Packet{
		Kind:    stream.KindToolStart,
		Turn:    iteration,
		Node:    NodeOrchestrator,
		Tool:    toolName,
		Queries: d.Queries,
		Text:    d.Reasoning,
	})

	return update, nil
}

// decideNext routes after an orchestrator pass based on the last tools_used
// entry. Reserved sentinels take precedence over the tool lookup.
func (e *engine) decideNext(ctx context.Context, state RunState) (graph.Route[RunState], error) {
	last := lastToolUsed(state)
	if last == "" {
		return graph.Route[RunState]{}, graph.NewInvariantError("tools_used is empty after an orchestrator pass")
	}

	switch last {
	case RouteEnd:
		return graph.Finish[RunState](), nil
	case RouteCloser:
		return graph.Goto[RunState](NodeCloser), nil
	case RouteLogger:
		return graph.Goto[RunState](NodeLogger), nil
	}

	if last == tool.ThinkingToolName {
		if state.IterationNr >= e.cfg.MaxIterations {
			return graph.Goto[RunState](NodeCloser), nil
		}
		return graph.Goto[RunState](NodeOrchestrator), nil
	}

	if e.remainingBudget(state) <= 0 {
		return graph.Goto[RunState](NodeCloser), nil
	}

	if len(state.AvailableTools) == 0 {
		return graph.Route[RunState]{}, graph.NewConfigError("no tool available for %q", last)
	}
	desc, ok := state.AvailableTools[last]
	if !ok {
		return graph.Route[RunState]{}, graph.NewConfigError("tool %q is not available", last)
	}

	if desc.RequiresQueries && len(state.QueryList) == 0 {
		// Dispatching an empty search wastes a tool call; finalize instead.
		return graph.Goto[RunState](NodeCloser), nil
	}

	return graph.FanOut(NodeCollector, e.branches(state, desc)...), nil
}

// branches builds one isolated branch per query, capped at the parallelism
// limit. Inputs are captured by value.
func (e *engine) branches(state RunState, desc tool.Descriptor) []graph.Branch[RunState] {
	queries := state.QueryList
	if e.cfg.MaxParallelSearch > 0 && len(queries) > e.cfg.MaxParallelSearch {
		e.logger.Warn("dropping %d queries beyond the parallelism cap", len(queries)-e.cfg.MaxParallelSearch)
		queries = queries[:e.cfg.MaxParallelSearch]
	}
	if len(queries) == 0 {
		queries = []string{state.OriginalQuestion}
	}

	branches := make([]graph.Branch[RunState], 0, len(queries))
	for i, q := range queries {
		in := BranchInput{
			Tool:              desc.Name,
			BranchQuestion:    q,
			ParallelizationNr: i,
			IterationNr:       state.IterationNr,
			OriginalQuestion:  state.OriginalQuestion,
			ChatHistory:       state.ChatHistory,
		}
		branches = append(branches, graph.Branch[RunState]{
			Name:  desc.Name,
			Index: i,
			Run: func(ctx context.Context) (RunState, error) {
				return e.runBranch(ctx, in)
			},
		})
	}
	return branches
}

// runBranch executes one tool call. Tool failures become a degraded
// IterationAnswer rather than an error, so sibling branches survive; only
// cancellation aborts the branch.
func (e *engine) runBranch(ctx context.Context, in BranchInput) (RunState, error) {
	if err := ctx.Err(); err != nil {
		return RunState{}, err
	}

	out := e.invokeTool(ctx, in)

	p := stream.Packet{
		Kind: stream.KindToolResult,
		Turn: in.IterationNr,
		Node: in.Tool,
		Tool: in.Tool,
		Text: fmt.Sprintf("branch %d answered %q", in.ParallelizationNr, in.BranchQuestion),
	}
	if out.Answer.Failed {
		p.Kind = stream.KindToolProgress
		p.Text = fmt.Sprintf("branch %d failed for %q", in.ParallelizationNr, in.BranchQuestion)
	}
	e.emitter.Emit(p)

	return out.StateUpdate(), nil
}

func (e *engine) invokeTool(ctx context.Context, in BranchInput) BranchOutput {
	answer := IterationAnswer{
		Tool:              in.Tool,
		IterationNr:       in.IterationNr,
		ParallelizationNr: in.ParallelizationNr,
		Question:          in.BranchQuestion,
	}

	t, ok := e.tools.Get(in.Tool)
	if !ok {
		answer.Failed = true
		answer.Reasoning = fmt.Sprintf("tool %q is not registered", in.Tool)
		return BranchOutput{
			Answer:      answer,
			LogMessages: []string{fmt.Sprintf("branch %d: %s", in.ParallelizationNr, answer.Reasoning)},
		}
	}

	result, err := t.Invoke(ctx, []string{in.BranchQuestion})
	if err != nil {
		e.logger.Warn("tool %s failed for %q: %v", in.Tool, in.BranchQuestion, err)
		answer.Failed = true
		answer.Reasoning = err.Error()
		return BranchOutput{
			Answer: answer,
			LogMessages: []string{fmt.Sprintf("branch %d: tool %s failed: %v",
				in.ParallelizationNr, in.Tool, err)},
		}
	}

	answer.Answer = result.Answer
	answer.Reasoning = result.Reasoning
	if len(result.Documents) > 0 {
		answer.CitedDocuments = make(map[string]tool.Document, len(result.Documents))
		for _, d := range result.Documents {
			answer.CitedDocuments[d.ID] = d
		}
	}

	return BranchOutput{
		Answer:         answer,
		CitedDocuments: result.Documents,
		LogMessages: []string{fmt.Sprintf("branch %d: tool %s returned %d documents",
			in.ParallelizationNr, in.Tool, len(result.Documents))},
	}
}

// collect runs after a fan-in and bills the dispatch once against the
// budget, regardless of how many branches it fanned out to.
func (e *engine) collect(ctx context.Context, state RunState) (RunState, error) {
	last := lastToolUsed(state)

	cost := e.cfg.DefaultToolCost
	if desc, ok := state.AvailableTools[last]; ok && desc.Cost > 0 {
		cost = desc.Cost
	}

	remaining := e.remainingBudget(state) - cost
	e.logger.Debug("billed %.1f for %s, %.1f remaining", cost, last, remaining)

	return RunState{
		RemainingBudget: &remaining,
		LogMessages: []string{fmt.Sprintf("billed %.1f for %s, %.1f remaining",
			cost, last, remaining)},
	}, nil
}

// checkCompleteness decides after a fan-in whether another iteration is
// allowed. Budget exhaustion and the iteration ceiling are hard backstops
// that force the closer no matter what the model wants.
func (e *engine) checkCompleteness(ctx context.Context, state RunState) (graph.Route[RunState], error) {
	if e.remainingBudget(state) <= 0 {
		return graph.Goto[RunState](NodeCloser), nil
	}
	if state.IterationNr >= e.cfg.MaxIterations {
		return graph.Goto[RunState](NodeCloser), nil
	}
	if e.cfg.MaxCloserSuggestions > 0 && state.NumCloserSuggestions >= e.cfg.MaxCloserSuggestions {
		return graph.Goto[RunState](NodeCloser), nil
	}
	return graph.Goto[RunState](NodeOrchestrator), nil
}

// closeRun streams the final answer to the packet bus and records it.
func (e *engine) closeRun(ctx context.Context, state RunState) (RunState, error) {
	e.emitter.Emit(stream.Packet{
		Kind: stream.KindMessageStart,
		Turn: state.IterationNr,
		Node: NodeCloser,
	})

	answer, err := e.model.Stream(ctx, e.closingPrompt(state), func(chunk string) error {
		e.emitter.Emit(stream.Packet{
			Kind: stream.KindMessageDelta,
			Turn: state.IterationNr,
			Node: NodeCloser,
			Text: chunk,
		})
		return ctx.Err()
	})
	if err != nil {
		return RunState{}, fmt.Errorf("closing answer: %w", err)
	}

	e.emitter.Emit(stream.Packet{
		Kind: stream.KindSectionEnd,
		Turn: state.IterationNr,
		Node: NodeCloser,
	})

	return RunState{
		FinalAnswer: answer,
		ToolsUsed:   []string{RouteLogger},
		LogMessages: []string{"final answer written"},
	}, nil
}

// logRun records the completed run in the diagnostic trail.
func (e *engine) logRun(ctx context.Context, state RunState) (RunState, error) {
	e.logger.Info("run complete: %d iterations, %d answers, %d cited documents",
		state.IterationNr, len(state.IterationResponses), len(state.AllCitedDocuments))
	return RunState{
		ToolsUsed:   []string{RouteEnd},
		LogMessages: []string{fmt.Sprintf("run finalized after %d iterations", state.IterationNr)},
	}, nil
}

func (e *engine) remainingBudget(state RunState) float64 {
	if state.RemainingBudget == nil {
		return e.cfg.StartBudget
	}
	return *state.RemainingBudget
}

func (e *engine) decisionPrompt(state RunState) string {
	gaps := "(none)"
	if len(state.Gaps) > 0 {
		gaps = strings.Join(state.Gaps, "; ")
	}
	return fmt.Sprintf(e.cfg.DecisionPrompt,
		state.OriginalQuestion,
		state.ChatHistory,
		formatToolList(state.AvailableTools),
		formatFindings(state.IterationResponses),
		e.remainingBudget(state),
		gaps,
	)
}

func (e *engine) closingPrompt(state RunState) string {
	return fmt.Sprintf(e.cfg.ClosingPrompt,
		state.OriginalQuestion,
		state.ChatHistory,
		formatFindings(state.IterationResponses),
	)
}
