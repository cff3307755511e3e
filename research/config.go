package research

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallnest/agentgraph/tool"
)

// Config carries all run parameters and prompt templates. Nodes receive it
// explicitly through their constructors; there is no module-global prompt or
// policy state.
type Config struct {
	// StartBudget is the time budget in search units a run begins with.
	StartBudget float64

	// DefaultToolCost is billed for a dispatch whose tool descriptor does
	// not declare its own cost.
	DefaultToolCost float64

	// MaxIterations caps orchestrator passes; reaching it forces the closer.
	MaxIterations int

	// MaxParallelSearch caps the number of branches per fan-out. Queries
	// beyond the cap are dropped for the iteration.
	MaxParallelSearch int

	// MaxCloserSuggestions caps how often finalization may be blocked by
	// unresolved gaps before the run finalizes regardless.
	MaxCloserSuggestions int

	// MaxSteps bounds graph node executions. Zero uses the graph default.
	MaxSteps int

	// StreamBufferSize sizes the packet bus. Zero uses the stream default.
	StreamBufferSize int

	// DecisionPrompt frames the orchestrator's tool decision. Formatted
	// with the question, chat history, tool list, previous findings,
	// remaining budget and open gaps.
	DecisionPrompt string

	// ClosingPrompt frames the final answer. Formatted with the question,
	// chat history and accumulated findings.
	ClosingPrompt string
}

// DefaultConfig returns the standard run parameters: two search units of
// budget, cost 1.0 per dispatch, at most three parallel branches.
func DefaultConfig() Config {
	return Config{
		StartBudget:          2.0,
		DefaultToolCost:      1.0,
		MaxIterations:        5,
		MaxParallelSearch:    3,
		MaxCloserSuggestions: 3,
		DecisionPrompt:       defaultDecisionPrompt,
		ClosingPrompt:        defaultClosingPrompt,
	}
}

const defaultDecisionPrompt = `You are the orchestrator of a deep research run.

Question: %s
Chat history:
%s

Available tools:
%s

Findings so far:
%s

Remaining budget: %.1f search units. Open gaps: %s

Decide the next step. Reply with JSON only:
{"tool": "<tool name, or CLOSER to finalize>", "queries": ["..."], "reasoning": "...", "gaps": ["unresolved gaps, if any"]}`

const defaultClosingPrompt = `Write the final answer to the user's question using the research findings below. Cite sources inline where possible.

Question: %s
Chat history:
%s

Findings:
%s`

func formatToolList(tools map[string]tool.Descriptor) string {
	if len(tools) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, name := range sortedToolNames(tools) {
		d := tools[name]
		fmt.Fprintf(&sb, "- %s (cost %.1f", d.Name, d.Cost)
		if d.RequiresQueries {
			sb.WriteString(", needs queries")
		}
		sb.WriteString(")\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFindings(answers []IterationAnswer) string {
	if len(answers) == 0 {
		return "(none yet)"
	}
	var sb strings.Builder
	for _, a := range answers {
		if a.Failed {
			fmt.Fprintf(&sb, "[%d.%d] %s FAILED for %q: %s\n",
				a.IterationNr, a.ParallelizationNr, a.Tool, a.Question, a.Reasoning)
			continue
		}
		fmt.Fprintf(&sb, "[%d.%d] %s answered %q:\n%s\n",
			a.IterationNr, a.ParallelizationNr, a.Tool, a.Question, a.Answer)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedToolNames(tools map[string]tool.Descriptor) []string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	// Stable prompt ordering keeps runs reproducible under the same inputs.
	sort.Strings(names)
	return names
}
