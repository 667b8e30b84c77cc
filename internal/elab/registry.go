package elab

import (
	"fmt"
	"sync"

	"graft/internal/ast"
)

// Translator turns one host node into shim code by pushing commands into
// the environment's buffer. Returning an UnreprintableError makes the
// section report it and move on to the next command.
type Translator func(env *Env, n *ast.Node) error

// Registry maps node kinds to translators. Safe for concurrent use:
// packages register in init, environments look up during elaboration.
type Registry struct {
	mu sync.RWMutex
	m  map[ast.Kind]Translator
}

// NewRegistry creates an empty translator registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[ast.Kind]Translator)}
}

// Register binds a translator to a node kind. Re-registering a kind is a
// programming error and panics.
func (r *Registry) Register(kind ast.Kind, fn Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[kind]; ok {
		panic(fmt.Errorf("translator for %q already registered", kind))
	}
	r.m[kind] = fn
}

// Lookup returns the translator for a kind, if any.
func (r *Registry) Lookup(kind ast.Kind) (Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.m[kind]
	return fn, ok
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the process-wide registry that packages populate
// from init (boundary generation registers here).
func DefaultRegistry() *Registry {
	return defaultRegistry
}
