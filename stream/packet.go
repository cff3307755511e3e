package stream

import "time"

// Kind discriminates the UI-facing packet variants.
type Kind string

const (
	// KindMessageStart opens a streamed answer section.
	KindMessageStart Kind = "message_start"

	// KindMessageDelta carries a chunk of streamed answer text.
	KindMessageDelta Kind = "message_delta"

	// KindSectionEnd closes a streamed answer section.
	KindSectionEnd Kind = "section_end"

	// KindToolStart announces a tool dispatch (name plus queries).
	KindToolStart Kind = "tool_start"

	// KindToolProgress carries intermediate tool progress.
	KindToolProgress Kind = "tool_progress"

	// KindToolResult announces a completed tool invocation.
	KindToolResult Kind = "tool_result"

	// KindOverallStop is the terminal packet of a successful run. The
	// consumer stops draining when it sees one.
	KindOverallStop Kind = "overall_stop"

	// KindException is the terminal packet of a failed run. The consumer
	// forwards it and then re-raises the carried error.
	KindException Kind = "exception"
)

// Packet is one unit of UI-facing streamed event data. Turn and Step allow
// the client to order packets; they reflect emission order, which may
// interleave across concurrent branches.
type Packet struct {
	Kind Kind `json:"kind"`

	// Turn is the orchestrator iteration the packet belongs to.
	Turn int `json:"turn"`

	// Step is a per-run sequence number assigned by the emitter.
	Step int `json:"step"`

	// Node names the graph node that produced the packet, when known.
	Node string `json:"node,omitempty"`

	// Text carries answer deltas and progress messages.
	Text string `json:"text,omitempty"`

	// Tool and Queries describe a tool dispatch.
	Tool    string   `json:"tool,omitempty"`
	Queries []string `json:"queries,omitempty"`

	// ErrText is the rendered error of an exception packet.
	ErrText string `json:"error,omitempty"`

	// Err carries the original error for in-process consumers. It is not
	// part of the wire encoding.
	Err error `json:"-"`

	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the packet ends the stream.
func (p Packet) Terminal() bool {
	return p.Kind == KindOverallStop || p.Kind == KindException
}
