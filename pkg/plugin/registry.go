package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// defaultRegistry is the process-wide registry. Built-in capability packages
// register into it from init(); tests construct isolated registries instead.
var defaultRegistry = NewRegistry()

// Registry holds named facts, operators, and error actions.
type Registry struct {
	mu        sync.RWMutex
	facts     map[string]Fact
	operators map[string]Operator
	actions   map[string]ErrorAction

	initWG   sync.WaitGroup
	initMu   sync.Mutex
	initErrs []error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		facts:     make(map[string]Fact),
		operators: make(map[string]Operator),
		actions:   make(map[string]ErrorAction),
	}
}

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// RegisterFact adds a fact. Later registrations with the same name win,
// so external plugins can shadow built-ins.
func (r *Registry) RegisterFact(f Fact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts[f.Name()] = f
}

// RegisterOperator adds an operator.
func (r *Registry) RegisterOperator(o Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[o.Name()] = o
}

// RegisterErrorAction adds a recovery hook under "plugin:function".
func (r *Registry) RegisterErrorAction(key string, a ErrorAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[key] = a
}

// Fact resolves a fact by name.
func (r *Registry) Fact(name string) (Fact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.facts[name]
	if !ok {
		return nil, fmt.Errorf("fact %q is not registered", name)
	}
	return f, nil
}

// Operator resolves an operator by name.
func (r *Registry) Operator(name string) (Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.operators[name]
	if !ok {
		return nil, fmt.Errorf("operator %q is not registered", name)
	}
	return o, nil
}

// ErrorAction resolves a recovery hook by its "plugin:function" key.
func (r *Registry) ErrorAction(key string) (ErrorAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[key]
	return a, ok
}

// FactNames returns the sorted names of all registered facts.
func (r *Registry) FactNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.facts))
	for name := range r.facts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OperatorNames returns the sorted names of all registered operators.
func (r *Registry) OperatorNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered facts and operators.
func (r *Registry) Count() (facts, operators int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.facts), len(r.operators)
}

// Clear removes all registered capabilities. Used for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = make(map[string]Fact)
	r.operators = make(map[string]Operator)
	r.actions = make(map[string]ErrorAction)
}

// =============================================================================
// Asynchronous initialization barrier
// =============================================================================

// Go runs a plugin initializer in the background. The initializer typically
// performs its own Register* calls once its setup work completes.
func (r *Registry) Go(name string, initFn func(ctx context.Context, r *Registry) error) {
	r.initWG.Add(1)
	go func() {
		defer r.initWG.Done()
		if err := initFn(context.Background(), r); err != nil {
			r.initMu.Lock()
			r.initErrs = append(r.initErrs, fmt.Errorf("plugin %s: %w", name, err))
			r.initMu.Unlock()
		}
	}()
}

// Wait blocks until every initializer started with Go has finished, or the
// context is done. It returns the first initialization error, if any.
// Rule evaluation must not begin before Wait returns nil: a partially
// registered capability set would silently change rule semantics.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.initWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if len(r.initErrs) > 0 {
		return r.initErrs[0]
	}
	return nil
}

// =============================================================================
// Package-level helpers targeting the default registry
// =============================================================================

// RegisterFact adds a fact to the default registry.
// Call this from init() functions in capability packages.
func RegisterFact(f Fact) { defaultRegistry.RegisterFact(f) }

// RegisterOperator adds an operator to the default registry.
func RegisterOperator(o Operator) { defaultRegistry.RegisterOperator(o) }

// RegisterErrorAction adds a recovery hook to the default registry.
func RegisterErrorAction(key string, a ErrorAction) {
	defaultRegistry.RegisterErrorAction(key, a)
}
