package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Document is one retrieved source. ID identifies the document across tools
// and iterations so citation sets can be deduplicated.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Result is what one tool invocation produced.
type Result struct {
	Answer    string     `json:"answer"`
	Reasoning string     `json:"reasoning,omitempty"`
	Documents []Document `json:"documents,omitempty"`
}

// Descriptor is the static description of a callable capability: its name,
// the route it resolves to, whether dispatching it needs a non-empty query
// list, and what one call costs against the run's time budget.
type Descriptor struct {
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	RequiresQueries bool    `json:"requires_queries"`
	Cost            float64 `json:"cost"`
}

// Tool is the invocation contract the orchestration engine depends on. A
// tool receives the query list for one dispatch and returns a single Result;
// it knows nothing about iterations, branches, or budgets.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, queries []string) (*Result, error)
}

// Registry holds the tools available to one run. Safe for concurrent reads
// after setup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its descriptor name. Registering the same name
// twice is an error so misconfigured setups fail at startup.
func (r *Registry) Register(t Tool) error {
	name := t.Descriptor().Name
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors returns the descriptors of all registered tools keyed by name.
func (r *Registry) Descriptors() map[string]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Descriptor, len(r.tools))
	for name, t := range r.tools {
		out[name] = t.Descriptor()
	}
	return out
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
