package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrMaxStepsExceeded is returned when a run exceeds the configured step limit.
	ErrMaxStepsExceeded = errors.New("maximum number of steps exceeded")

	// ErrBranchFailed wraps the first branch error of a failed fan-out.
	ErrBranchFailed = errors.New("fan-out branch failed")
)

// ConfigError reports a structurally invalid graph or tool configuration.
// It is fatal and aborts the run immediately.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// InvariantError reports an internal consistency violation. It indicates a
// programming bug and fails loudly rather than silently defaulting.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// NewInvariantError creates an InvariantError with a formatted reason.
func NewInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}
