// Package tool implements the capability subsystem that lets executors invoke
// structured side effects (APIs, file IO, computations) with schema validated
// arguments and uniform error handling.
package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/speedy0526/agents/core"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names)
//   - Define a JSON-schema-like parameter map
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is shown to the model so it can decide when to invoke the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Execute runs the tool with validated arguments. Implementations must
	// respect ctx cancellation for long operations.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Registry is a concurrent-safe name → Tool index. The orchestrator holds the
// full registry; skill executions receive least-privilege subsets of it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry, optionally pre-populated.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
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

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Subset returns a new registry holding only the named tools that exist here.
// Unknown names are silently skipped; callers needing strictness compare
// Names() against their request.
func (r *Registry) Subset(names []string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := NewRegistry()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.tools[name] = t
		}
	}
	return sub
}

// Describe renders a model-facing catalog of the registered tools.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[name].Description())
	}
	return b.String()
}

// Execute validates args against the tool's schema and runs it, normalizing
// failures onto the shared error taxonomy. An unknown name is reported as
// tool-not-found so the caller can fail the dispatch immediately.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, core.NewAgentError(core.ErrToolNotFound,
			fmt.Sprintf("tool %q not found", name)).WithDetail("tool", name)
	}

	if err := ValidateParameters(args, t.Parameters()); err != nil {
		return nil, core.WrapAgentError(core.ErrToolExecutionFailed,
			fmt.Sprintf("tool %q parameter validation failed", name), err).WithDetail("tool", name)
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		if core.CodeOf(err) != "" {
			return nil, err
		}
		return nil, core.WrapAgentError(core.ErrToolExecutionFailed,
			fmt.Sprintf("tool %q failed", name), err).WithDetail("tool", name)
	}
	return result, nil
}
