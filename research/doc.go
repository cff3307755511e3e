// Package research implements the deep research orchestration engine: an
// LLM-driven loop that decomposes a question into search queries, fans the
// queries out to tools in parallel, accumulates the findings under a
// declared merge schema, and streams a final answer once the time budget or
// iteration ceiling is reached.
//
// The graph has four nodes. The orchestrator asks the model for the next
// tool and queries; its router fans the queries out as isolated branches.
// The collector joins a fan-out and bills the dispatch once against the
// budget; its router loops back or forces the closer. The closer streams
// the final answer, and the logger records the completed run.
//
//	runner := research.NewRunner(research.DefaultConfig(), model, registry,
//		research.WithWriter(store))
//	handle := runner.Start(ctx, "compare pgx and database/sql", "")
//	err := handle.Drain(func(p stream.Packet) error {
//		fmt.Print(p.Text)
//		return nil
//	})
package research
