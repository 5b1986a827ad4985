package tool

import (
	"fmt"
	"sync"
)

var (
	// ErrDuplicateTool is returned when registering a tool whose name is
	// already bound within the same registry scope.
	ErrDuplicateTool = fmt.Errorf("duplicate tool")

	// ErrUnknownTool is returned when resolving a tool name that was never
	// registered in the scope.
	ErrUnknownTool = fmt.Errorf("unknown tool")
)

// Registry is the tool scope owned by a single task. It maps tool names to
// implementations and preserves registration order for stable exposure to a
// model's function-calling interface.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry constructs an empty registry, optionally seeded with tools.
// Seeding panics on duplicate names since it always indicates a programming
// error in a static tool list; use Register for fallible registration.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register binds a tool within this scope. It fails with ErrDuplicateTool if
// the name already exists.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Resolve returns the tool registered under name or fails with ErrUnknownTool.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
