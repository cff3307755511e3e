// Package store persists completed research runs. The RunStore interface is
// implemented in memory (MemoryStore) and, in subpackages, on PostgreSQL,
// SQLite and Redis. Every store satisfies research.ResultWriter, so any of
// them can be handed to research.WithWriter unchanged.
package store
