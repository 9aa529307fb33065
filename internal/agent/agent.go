// Package agent contains the agent handlers invoked by the worker dispatch
// loop, and the registry that maps agent_type tags to them. Handlers are
// prompt-templating wrappers around the text-generation backend: pure
// request/response functions of the task's input payload.
package agent

import (
	"context"
	"fmt"
	"sort"
)

// Agent type tags. The registry built by NewRegistry is the closed set of
// supported types; submission validates against it and the worker polls one
// queue per type.
const (
	TypeTrendAnalyzer    = "trend_analyzer"
	TypeContentGenerator = "content_generator"
	TypeScheduler        = "scheduler"
	TypeTrendToPost      = "trend_to_post"
)

// Handler performs the actual work for one task type.
type Handler interface {
	// Name returns the agent type tag this handler serves.
	Name() string

	// Handle processes the task's input payload and returns a structured
	// result, or an error on failure. A result containing an "error" key is
	// treated as a failure by the dispatch loop.
	Handle(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ErrUnknownAgentType is returned by Registry.Get for unregistered types.
var ErrUnknownAgentType = fmt.Errorf("unknown agent type")

// Registry maps agent type tags to their handlers. Adding a task type means
// registering a new handler, not branching in the dispatch loop.
type Registry struct {
	handlers map[string]Handler
}

// NewEmptyRegistry creates a Registry with no handlers registered.
func NewEmptyRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewRegistry creates a Registry with the full set of production handlers
// wired against the given text-generation backend.
func NewRegistry(gen Generator) *Registry {
	r := NewEmptyRegistry()

	analyzer := NewTrendAnalyzer(gen)
	generator := NewContentGenerator(gen)
	scheduler := NewScheduler(gen)

	r.Register(analyzer)
	r.Register(generator)
	r.Register(scheduler)
	r.Register(NewTrendToPost(analyzer, generator, scheduler))

	return r
}

// Register adds a handler under its own name, replacing any previous
// registration for that name.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Get returns the handler for the given agent type.
func (r *Registry) Get(agentType string) (Handler, error) {
	h, ok := r.handlers[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgentType, agentType)
	}
	return h, nil
}

// Supports reports whether the given agent type is registered.
func (r *Registry) Supports(agentType string) bool {
	_, ok := r.handlers[agentType]
	return ok
}

// Types returns the sorted list of registered agent types. The worker polls
// one queue per entry.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Generator is the text-generation capability the handlers build prompts
// against. Satisfied by the ollama client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// queryField extracts the conventional free-text "query" field from a task
// payload. Missing or non-string values yield an empty query, matching the
// permissive behavior of the agents' original prompts.
func queryField(input map[string]any) string {
	if input == nil {
		return ""
	}
	if q, ok := input["query"].(string); ok {
		return q
	}
	return ""
}
