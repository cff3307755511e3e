// AgentGraph - Multi-Step Research Agent Orchestration in Go
//
// AgentGraph is a graph-based orchestration engine for multi-step LLM agents.
// It runs a deep-research loop: an orchestrator model picks a tool, the engine
// fans the tool's queries out across parallel branches, merges the results
// back in deterministic order, bills the run's budget, and loops until the
// model finalizes or the budget, iteration, or suggestion limits stop it. The
// final answer streams to the caller as typed packets.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/agentgraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/agentgraph/llm"
//		"github.com/smallnest/agentgraph/research"
//		"github.com/smallnest/agentgraph/stream"
//		"github.com/smallnest/agentgraph/tool"
//	)
//
//	func main() {
//		model := llm.NewOpenAIClient(llm.OpenAIConfig{Model: "gpt-4o-mini"})
//
//		registry := tool.NewRegistry()
//		brave, _ := tool.NewBraveSearch("")
//		registry.Register(brave)
//		registry.Register(tool.NewThinking())
//
//		runner := research.NewRunner(research.DefaultConfig(), model, registry)
//
//		h := runner.Start(context.Background(), "What is WebTransport?", "")
//		h.Drain(func(p stream.Packet) error {
//			if p.Kind == stream.KindMessageDelta {
//				fmt.Print(p.Text)
//			}
//			return nil
//		})
//	}
//
// # Package Structure
//
// graph/
// The generic state-graph executor: typed nodes, conditional routing,
// parallel fan-out with ordered fan-in, reducer-based state merging, and
// nested subgraphs.
//
//	g := graph.NewStateGraph[MyState](schema)
//	g.AddNode("work", work)
//	g.SetEntryPoint("work")
//	g.AddEdge("work", graph.END)
//	runnable, _ := g.Compile()
//	result, _ := runnable.Invoke(ctx, MyState{})
//
// stream/
// The packet bus between the engine and its consumer: typed packets, a
// multi-producer emitter, and a run harness that guarantees every stream
// ends with a terminal packet.
//
// research/
// The deep-research policy on top of graph/: orchestrator routing, budget
// accounting, degraded branch handling, and the closing answer stream.
// research/subagent wraps a retrieval graph as a tool the orchestrator can
// dispatch.
//
// llm/
// The model boundary. Invoker is implemented for langchaingo models and for
// go-openai clients, so any OpenAI-compatible endpoint works.
//
// tool/
// Research tools: Brave web search, a goquery-based page fetcher, the
// zero-cost thinking pass, and an adapter for langchaingo tools.
//
// store/
// Run persistence: in-memory, PostgreSQL, SQLite, and Redis implementations
// of the same RunStore interface.
//
// server/
// HTTP surface: POST /research streams packets as server-sent events, GET
// /runs serves persisted runs with markdown answers rendered to sanitized
// HTML.
//
// # Configuration
//
// The examples read these environment variables:
//
//   - OPENAI_API_KEY: API key for the model endpoint
//   - OPENAI_BASE_URL: override for OpenAI-compatible providers
//   - BRAVE_API_KEY: Brave Search subscription token
//   - DATABASE_URL: PostgreSQL run store connection string
//
// See the examples directory for complete programs.
package agentgraph // import "github.com/smallnest/agentgraph"
