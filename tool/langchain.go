package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

// LangChainTool exposes any langchaingo tools.Tool to the orchestrator. Each
// query becomes one Call on the wrapped tool; the outputs are concatenated.
// Wrapped tools return plain text, so no documents are cited.
type LangChainTool struct {
	wrapped tools.Tool
	cost    float64
}

var _ Tool = (*LangChainTool)(nil)

// WrapLangChainTool adapts t with the given budget cost per dispatch.
func WrapLangChainTool(t tools.Tool, cost float64) *LangChainTool {
	return &LangChainTool{wrapped: t, cost: cost}
}

// Descriptor describes the tool to the orchestrator.
func (t *LangChainTool) Descriptor() Descriptor {
	return Descriptor{
		Name:            t.wrapped.Name(),
		Path:            t.wrapped.Name(),
		RequiresQueries: true,
		Cost:            t.cost,
	}
}

// Invoke calls the wrapped tool once per query.
func (t *LangChainTool) Invoke(ctx context.Context, queries []string) (*Result, error) {
	var sb strings.Builder
	for _, query := range queries {
		out, err := t.wrapped.Call(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%s(%q): %w", t.wrapped.Name(), query, err)
		}
		sb.WriteString(out)
		sb.WriteString("\n")
	}
	return &Result{Answer: strings.TrimSpace(sb.String())}, nil
}
