package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no usable content.
var ErrEmptyResponse = errors.New("empty response from model")

// Invoker is the narrow LLM boundary used by orchestration nodes. Failure
// modes (timeouts, malformed output) surface as errors, never as silent
// defaults.
type Invoker interface {
	// Invoke sends a prompt and returns the full completion.
	Invoke(ctx context.Context, prompt string) (string, error)

	// Stream sends a prompt and forwards completion chunks to fn as they
	// arrive, returning the assembled completion. A non-nil error from fn
	// aborts the stream.
	Stream(ctx context.Context, prompt string, fn func(chunk string) error) (string, error)
}

// ExtractJSON strips markdown code fences around a JSON completion. Models
// routinely wrap structured output in ```json fences even when told not to.
func ExtractJSON(completion string) string {
	s := strings.TrimSpace(completion)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
