package research

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/stream"
	"github.com/smallnest/agentgraph/tool"
)

// RunResult is the durable outcome of one run, handed to the ResultWriter at
// completion.
type RunResult struct {
	RunID              string            `json:"run_id"`
	Question           string            `json:"question"`
	FinalAnswer        string            `json:"final_answer"`
	IterationResponses []IterationAnswer `json:"iteration_responses,omitempty"`
	CitedDocuments     []tool.Document   `json:"cited_documents,omitempty"`
	LogMessages        []string          `json:"log_messages,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// ResultWriter persists completed runs. The engine itself performs no
// database writes; it only hands the result over.
type ResultWriter interface {
	SaveResult(ctx context.Context, result *RunResult) error
}

// Runner executes research runs. Safe for concurrent use; each run gets its
// own graph, emitter and state.
type Runner struct {
	cfg    Config
	model  llm.Invoker
	tools  *tool.Registry
	writer ResultWriter
	logger log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWriter sets the persistence writer for completed runs.
func WithWriter(w ResultWriter) RunnerOption {
	return func(r *Runner) {
		r.writer = w
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner with the given configuration, model and tools.
func NewRunner(cfg Config, model llm.Invoker, tools *tool.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		model:  model,
		tools:  tools,
		logger: log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle tracks one in-flight run: its packet stream plus, once the run has
// finished, its result.
type Handle struct {
	// ID is the run's unique identifier.
	ID string

	emitter *stream.Emitter
	done    chan struct{}
	result  *RunResult
	err     error
}

// Packets exposes the run's packet stream for custom consumers.
func (h *Handle) Packets() <-chan stream.Packet {
	return h.emitter.Packets()
}

// Drain consumes the packet stream until the terminal packet, forwarding
// each packet to fn. See stream.Emitter.Drain.
func (h *Handle) Drain(fn func(stream.Packet) error) error {
	return h.emitter.Drain(fn)
}

// Wait blocks until the run has finished and returns its result. The packet
// stream must be drained concurrently or the producer may block on a full
// bus.
func (h *Handle) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start launches a run in the background and returns its handle. The caller
// cancels the run through ctx; in-flight branches stop at their next
// checkpoint and completed outputs are discarded.
func (r *Runner) Start(ctx context.Context, question, chatHistory string) *Handle {
	h := &Handle{
		ID:      uuid.NewString(),
		emitter: stream.NewEmitter(r.cfg.StreamBufferSize),
		done:    make(chan struct{}),
	}

	stream.Run(ctx, h.emitter, func(ctx context.Context) error {
		defer close(h.done)
		result, err := r.execute(ctx, h.ID, h.emitter, question, chatHistory)
		if err != nil {
			h.err = err
			return err
		}
		h.result = result
		return nil
	})

	return h
}

func (r *Runner) execute(ctx context.Context, runID string, emitter *stream.Emitter, question, chatHistory string) (*RunResult, error) {
	eng := newEngine(r.cfg, r.model, r.tools, emitter, r.logger)
	runnable, err := eng.buildGraph()
	if err != nil {
		return nil, err
	}

	budget := r.cfg.StartBudget
	initial := RunState{
		OriginalQuestion: question,
		ChatHistory:      chatHistory,
		RemainingBudget:  &budget,
		AvailableTools:   r.tools.Descriptors(),
	}

	r.logger.Info("run %s started: %q", runID, question)
	final, err := runnable.InvokeWithConfig(ctx, initial, &graph.Config{MaxSteps: r.cfg.MaxSteps})
	if err != nil {
		return nil, err
	}
	if final.FinalAnswer == "" {
		return nil, graph.NewInvariantError("run %s ended without a final answer", runID)
	}

	result := &RunResult{
		RunID:              runID,
		Question:           question,
		FinalAnswer:        final.FinalAnswer,
		IterationResponses: final.IterationResponses,
		CitedDocuments:     final.AllCitedDocuments,
		LogMessages:        final.LogMessages,
		CreatedAt:          time.Now(),
	}

	if r.writer != nil {
		if err := r.writer.SaveResult(ctx, result); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", runID, err)
		}
	}

	r.logger.Info("run %s finished: %d iterations", runID, final.IterationNr)
	return result, nil
}
