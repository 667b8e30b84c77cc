package elab

import (
	"errors"

	"go.uber.org/zap"

	"graft/internal/ast"
	"graft/internal/diag"
)

// Elaborate translates one host node into shim code.
//
// Dispatch order: a registered translator for the node's kind wins; macro
// nodes get one expansion attempt through the host's expander; everything
// else is reprinted verbatim. A node that survives none of the three
// yields an UnreprintableError.
func Elaborate(env *Env, n *ast.Node) error {
	if env.registry != nil {
		if fn, ok := env.registry.Lookup(n.Kind); ok {
			return fn(env, n)
		}
	}

	if n.Kind == ast.KindMacro && env.Macros != nil {
		if expanded, ok := env.Macros(env, n); ok {
			return Elaborate(env, expanded)
		}
	}

	text, ok := ast.Reprint(n)
	if !ok {
		return &UnreprintableError{Kind: n.Kind, Span: n.CoverSpan()}
	}
	return env.PushCommand(text, n.CoverSpan())
}

// Section elaborates one embedded foreign-code region: every child is a
// command. Commands that cannot be translated become diagnostics and the
// section keeps going; only infrastructure failures abort it. After the
// batch, the driver's diagnostics hook runs over the accumulated buffer.
func Section(env *Env, n *ast.Node) error {
	if env.inSection {
		diag.ReportError(env.Reporter, diag.ShimNestedSection, n.CoverSpan(),
			"foreign-code sections cannot be nested").Emit()
		return nil
	}
	env.inSection = true
	defer func() { env.inSection = false }()

	env.Log.Debug("elaborating section",
		zap.Int("commands", len(n.Children)),
		zap.Uint32("shim_offset", BufferOf(env).EndOffset()),
	)

	for _, cmd := range n.Children {
		err := Elaborate(env, cmd)
		if err == nil {
			continue
		}
		var unrep *UnreprintableError
		if errors.As(err, &unrep) {
			diag.ReportError(env.Reporter, diag.ShimUnreprintable, unrep.Span,
				"cannot translate this form to foreign code").
				WithNote(n.CoverSpan(), "inside this section").
				Emit()
			continue
		}
		return err
	}

	if env.Options.Diagnostics && env.Diagnose != nil {
		env.Diagnose(env, n.CoverSpan())
	}
	return nil
}
