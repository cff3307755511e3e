// Package subagent implements the search sub-agent: a self-contained graph
// that fans search queries out to a Retriever in parallel, deduplicates the
// results by document ID, and reranks them against the question.
//
// The parent graph never sees its internals. Compose it either as an
// orchestrator tool via Agent.AsTool, or embed the compiled graph directly
// with graph.AddSubgraph using Input/Output projections.
package subagent
