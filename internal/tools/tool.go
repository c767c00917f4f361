// Package tools defines the shared [Tool] type and the in-process [Registry]
// that the LLM Engine consults during its tool-call loop. Unlike a
// general-purpose MCP host, every tool here runs in the same process as the
// engine: there is no server transport, no latency-tier budget enforcement,
// and no calibration, because the graph query tool always answers from an
// in-memory store in well under a millisecond.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowtwo/graphforge/pkg/provider/llm"
)

// Tool pairs an LLM-facing schema with the handler invoked when the model
// calls it.
type Tool struct {
	// Definition is the tool's LLM-facing schema: name, description, and
	// JSON Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use, must respect context
	// cancellation, and must not mutate graph state.
	Handler func(ctx context.Context, args string) (string, error)
}

// Registry is a concurrent-safe, in-process catalogue of tools available to
// the LLM Engine. The zero value is not usable; create one with [New].
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces the tool under its Definition.Name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Definition.Name] = t
}

// Definitions returns every registered tool's LLM-facing schema, in no
// particular order. Pass the result to the provider when opening a
// tool-use-capable completion.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Definition)
	}
	return out
}

// All returns every registered Tool (schema plus handler), in no
// particular order. Used to seed a per-tenant Registry copy with the
// tools registered on a shared base (see orchestrator.buildRegistry).
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute runs the named tool synchronously and returns its JSON-encoded
// result. It returns an error if no tool with that name is registered, or
// if the tool's own handler fails.
func (r *Registry) Execute(ctx context.Context, name string, args string) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("tools: tool %q not found", name)
	}
	return t.Handler(ctx, args)
}
