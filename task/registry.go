package task

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps keys (explicit names or concrete task types) to task
// instances for process-wide lookup. It replaces a hidden global with an
// explicit object owned by the session or orchestrator; registration is
// one-time and monotonic, and there is no deregistration path.
//
// The registry is internally synchronized: Register may be called
// concurrently with Get/All from other turns.
type Registry struct {
	mu    sync.RWMutex
	tasks map[any]Tasker
}

// NewRegistry constructs an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[any]Tasker)}
}

// RegisterOptions configures a Register call.
type RegisterOptions struct {
	// Name overrides the key; when empty the task's own name is used, and
	// when that is empty too the task's concrete type becomes the key.
	Name string
}

// WithRegisterName keys the registration under an explicit name.
func WithRegisterName(name string) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Name = name }
}

// Register adds a task under its key. It fails with ErrAlreadyRegistered if
// the key is already present; the existing entry is never overwritten.
func (r *Registry) Register(t Tasker, optFns ...func(o *RegisterOptions)) error {
	var opts RegisterOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	var key any
	switch {
	case opts.Name != "":
		key = opts.Name
	case t.Base().Name() != "":
		key = t.Base().Name()
	default:
		key = reflect.TypeOf(t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[key]; exists {
		return fmt.Errorf("%w: key %v", ErrAlreadyRegistered, key)
	}
	r.tasks[key] = t
	return nil
}

// Get returns the task registered under name or fails with ErrNotFound.
func (r *Registry) Get(name string) (Tasker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return t, nil
}

// GetByType returns the task registered under the concrete type of
// prototype. Pass a (typed, possibly nil) pointer of the task type to look
// up, e.g. GetByType((*RenewalTask)(nil)).
func (r *Registry) GetByType(prototype any) (Tasker, error) {
	key := reflect.TypeOf(prototype)
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[key]
	if !ok {
		return nil, fmt.Errorf("%w: type %v", ErrNotFound, key)
	}
	return t, nil
}

// All returns the registered instances, de-duplicated: a task registered
// both by name and by its type is counted once.
func (r *Registry) All() []Tasker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Tasker]struct{}, len(r.tasks))
	tasks := make([]Tasker, 0, len(r.tasks))
	for _, t := range r.tasks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks
}

// Len returns the number of distinct keys (not instances).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
