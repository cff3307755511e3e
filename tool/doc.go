// Package tool defines the capability contract the orchestration engine
// dispatches work through, plus a set of ready-to-use implementations.
//
// A Tool is described by a Descriptor (name, route path, whether it needs a
// query list, budget cost) and invoked with the queries of one dispatch. The
// engine never sees tool internals; it only consumes the returned Result and
// its cited Documents.
//
// Included tools:
//
//   - BraveSearch: web search through the Brave Search API
//   - WebFetch: URL retrieval with readable-text extraction
//   - Thinking: zero-cost reasoning-only sentinel
//   - LangChainTool: adapter for any langchaingo tools.Tool
package tool
