package elab

import "sync"

var (
	extMu    sync.Mutex
	extCount int
)

// Ext is a typed per-environment state slot. Packages declare an Ext at
// package level and read their state through it; each Env materialises
// the slot lazily on first access. This keeps Env free of fields for
// state only one consumer cares about (shim buffer, boundary table).
type Ext[T any] struct {
	idx  int
	init func() T
}

// NewExt registers a new extension slot. Call from package level.
func NewExt[T any](init func() T) *Ext[T] {
	extMu.Lock()
	defer extMu.Unlock()
	e := &Ext[T]{idx: extCount, init: init}
	extCount++
	return e
}

// Get returns the slot's value in env, initialising it on first access.
func (e *Ext[T]) Get(env *Env) T {
	env.growExts(e.idx)
	if env.exts[e.idx] == nil {
		env.exts[e.idx] = e.init()
	}
	return env.exts[e.idx].(T)
}

// Set overwrites the slot's value in env.
func (e *Ext[T]) Set(env *Env, v T) {
	env.growExts(e.idx)
	env.exts[e.idx] = v
}

func (env *Env) growExts(idx int) {
	for len(env.exts) <= idx {
		env.exts = append(env.exts, nil)
	}
}
