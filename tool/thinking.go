package tool

import (
	"context"
)

// ThinkingToolName is the sentinel tool name for a reasoning-only pass. The
// decision router treats it specially: no dispatch happens and control
// returns to the orchestrator.
const ThinkingToolName = "thinking"

// Thinking is a zero-cost tool that records a reasoning pass without doing
// any external work.
type Thinking struct{}

// NewThinking creates the thinking tool.
func NewThinking() *Thinking {
	return &Thinking{}
}

// Descriptor describes the tool to the orchestrator.
func (t *Thinking) Descriptor() Descriptor {
	return Descriptor{
		Name:            ThinkingToolName,
		Path:            ThinkingToolName,
		RequiresQueries: false,
		Cost:            0,
	}
}

// Invoke returns an empty result; the orchestrator's reasoning is recorded
// by the node that requested the pass, not here.
func (t *Thinking) Invoke(ctx context.Context, queries []string) (*Result, error) {
	return &Result{}, nil
}
