package research

import (
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/tool"
)

// Reserved route sentinels. A tool whose name collides with one of these
// always resolves to the reserved meaning, never to the tool lookup.
const (
	RouteEnd    = graph.END
	RouteLogger = "LOGGER"
	RouteCloser = "CLOSER"
)

// Graph node names.
const (
	NodeOrchestrator = "orchestrator"
	NodeCollector    = "collector"
	NodeCloser       = "closer"
	NodeLogger       = "logger"
)

// Plan is the orchestrator's working plan for answering the question.
type Plan struct {
	Steps     []string `json:"steps"`
	Rationale string   `json:"rationale,omitempty"`
}

// ClarificationInfo records a clarification exchange with the user.
type ClarificationInfo struct {
	Question string `json:"question"`
	Response string `json:"response,omitempty"`
}

// IterationAnswer is one tool invocation's result. It is immutable once
// constructed: produced exactly once per branch execution and merged into
// RunState.IterationResponses by append.
type IterationAnswer struct {
	Tool              string                   `json:"tool"`
	ToolID            int                      `json:"tool_id"`
	IterationNr       int                      `json:"iteration_nr"`
	ParallelizationNr int                      `json:"parallelization_nr"`
	Question          string                   `json:"question"`
	Answer            string                   `json:"answer"`
	Reasoning         string                   `json:"reasoning,omitempty"`
	CitedDocuments    map[string]tool.Document `json:"cited_documents,omitempty"`

	// Failed marks a degraded answer recorded for a branch whose tool call
	// failed. Sibling branches are unaffected.
	Failed bool `json:"failed,omitempty"`
}

// RunState is the state threaded through one run of the research graph.
// It is immutable by discipline: nodes return partial updates which the
// executor merges through the schema declared by NewSchema.
type RunState struct {
	OriginalQuestion string `json:"original_question"`
	ChatHistory      string `json:"chat_history,omitempty"`

	// IterationNr starts at 0 and is incremented once per orchestrator pass.
	IterationNr int `json:"iteration_nr"`

	// QueryList holds the queries to dispatch this iteration. It is
	// consumed at dispatch: every merge rewrites it, so stale queries never
	// leak into the next iteration.
	QueryList []string `json:"query_list,omitempty"`

	// ToolsUsed is an append-only log; the last entry determines routing.
	ToolsUsed []string `json:"tools_used,omitempty"`

	// RemainingBudget is the remaining time budget in search units. A nil
	// pointer means "not set"; an explicit zero is a meaningful value.
	RemainingBudget *float64 `json:"remaining_budget,omitempty"`

	// IterationResponses accumulates one IterationAnswer per branch,
	// ordered by iteration then parallelization number.
	IterationResponses []IterationAnswer `json:"iteration_responses,omitempty"`

	PlanOfRecord  *Plan              `json:"plan_of_record,omitempty"`
	Clarification *ClarificationInfo `json:"clarification,omitempty"`

	// AvailableTools maps tool names to their descriptors.
	AvailableTools map[string]tool.Descriptor `json:"available_tools,omitempty"`

	FinalAnswer string `json:"final_answer,omitempty"`

	// AllCitedDocuments accumulates every cited document, deduplicated by
	// document ID with first occurrence winning.
	AllCitedDocuments []tool.Document `json:"all_cited_documents,omitempty"`

	// LogMessages is the append-only diagnostic trail.
	LogMessages []string `json:"log_messages,omitempty"`

	// NumCloserSuggestions counts finalization proposals that were blocked
	// by unresolved gaps.
	NumCloserSuggestions int `json:"num_closer_suggestions,omitempty"`

	// Gaps lists the open information gaps the orchestrator still sees.
	Gaps []string `json:"gaps,omitempty"`
}

// NewSchema declares the merge semantics for RunState fields. Fields not
// listed here use overwrite-if-non-zero semantics.
func NewSchema() *graph.StructSchema[RunState] {
	s := graph.NewStructSchema[RunState]()
	s.RegisterReducer("ToolsUsed", graph.Append)
	s.RegisterReducer("IterationResponses", graph.Append)
	s.RegisterReducer("LogMessages", graph.Append)
	s.RegisterReducer("QueryList", graph.Overwrite)
	s.RegisterReducer("RemainingBudget", graph.OverwriteNonNil)
	s.RegisterReducer("AllCitedDocuments", graph.DedupeBy(func(elem any) string {
		return elem.(tool.Document).ID
	}))
	return s
}

// BranchInput is the isolated state slice one fan-out branch receives. It is
// captured by value at dispatch so concurrent branches can never observe each
// other's writes.
type BranchInput struct {
	Tool              string
	BranchQuestion    string
	ParallelizationNr int
	IterationNr       int
	OriginalQuestion  string
	ChatHistory       string
}

// BranchOutput is what one branch contributes back to the parent state.
type BranchOutput struct {
	Answer         IterationAnswer
	CitedDocuments []tool.Document
	LogMessages    []string
}

// StateUpdate converts the branch output into a partial RunState for merging.
func (o BranchOutput) StateUpdate() RunState {
	return RunState{
		IterationResponses: []IterationAnswer{o.Answer},
		AllCitedDocuments:  o.CitedDocuments,
		LogMessages:        o.LogMessages,
	}
}

func lastToolUsed(state RunState) string {
	if len(state.ToolsUsed) == 0 {
		return ""
	}
	return state.ToolsUsed[len(state.ToolsUsed)-1]
}
