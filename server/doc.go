// Package server exposes the research engine over HTTP. POST /research
// starts a run and streams its packets as server-sent events; GET /runs and
// GET /runs/{id} serve persisted runs, with the final answer rendered from
// markdown to sanitized HTML.
//
// The wire encoding lives entirely here; the engine only ever sees the
// packet bus.
package server
