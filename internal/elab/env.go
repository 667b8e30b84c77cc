package elab

import (
	"go.uber.org/zap"

	"graft/internal/ast"
	"graft/internal/diag"
	"graft/internal/shim"
	"graft/internal/source"
)

// NameResolver resolves a host identifier to its fully qualified form.
// Supplied by the host frontend; boundary generation depends on it.
type NameResolver func(name string) (string, error)

// NameDeclarer introduces a host-level opaque type declaration for name.
// Runs before resolution; nil means the host declares elsewhere.
type NameDeclarer func(name string) error

// MacroExpander expands one macro node into plain syntax.
// Returns false when the macro is not expandable here.
type MacroExpander func(env *Env, n *ast.Node) (*ast.Node, bool)

// DiagnoseFunc runs one external diagnostics round over the accumulated
// shim document. Failures are reported through env.Reporter (usually as
// warnings), never returned: a broken tool must not abort elaboration.
type DiagnoseFunc func(env *Env, section source.Span)

// Env is the state of one compilation environment: the host files seen so
// far, where diagnostics go, and per-consumer extension slots.
type Env struct {
	Files    *source.FileSet
	Reporter diag.Reporter
	Options  Options
	Log      *zap.Logger

	// Resolver, Declare и Macros приходят от host-фронтенда; могут быть nil.
	Resolver NameResolver
	Declare  NameDeclarer
	Macros   MacroExpander

	// Diagnose is wired by the driver when Options.Diagnostics is on.
	Diagnose DiagnoseFunc

	registry  *Registry
	exts      []any
	inSection bool
}

// NewEnv creates an environment over the given file set. A nil reporter
// discards diagnostics; a nil registry means fallback-only translation.
func NewEnv(files *source.FileSet, reporter diag.Reporter, opts Options) *Env {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	return &Env{
		Files:    files,
		Reporter: reporter,
		Options:  opts,
		Log:      zap.NewNop(),
		registry: DefaultRegistry(),
	}
}

// WithRegistry replaces the translator registry (tests, custom hosts).
func (env *Env) WithRegistry(r *Registry) *Env {
	env.registry = r
	return env
}

// WithLogger attaches a logger. Nil restores the no-op default.
func (env *Env) WithLogger(log *zap.Logger) *Env {
	if log == nil {
		log = zap.NewNop()
	}
	env.Log = log
	return env
}

var bufferExt = NewExt(func() *shim.Buffer { return shim.NewBuffer() })

// BufferOf returns the environment's shim buffer, creating it on first use.
func BufferOf(env *Env) *shim.Buffer {
	return bufferExt.Get(env)
}

// PushCommand appends translated foreign code to the environment's buffer,
// mapping it back to origin.
func (env *Env) PushCommand(text string, origin source.Span) error {
	return BufferOf(env).Push(text, origin)
}
