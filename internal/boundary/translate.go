package boundary

import (
	"errors"
	"fmt"

	"graft/internal/ast"
	"graft/internal/diag"
	"graft/internal/elab"
)

func init() {
	elab.DefaultRegistry().Register(ast.KindBoundary, Translate)
}

// parseDecl reads a boundary declaration node: the first child names the
// declared type, the second (optional) holds key/value option atoms.
// Further children are resolution inputs for the host and are ignored.
func parseDecl(n *ast.Node) (Decl, error) {
	if len(n.Children) == 0 || n.Children[0].Text == "" {
		return Decl{}, errors.New("boundary declaration needs a type name")
	}
	d := Decl{Name: n.Children[0].Text, Span: n.CoverSpan()}
	if len(n.Children) == 1 {
		return d, nil
	}
	opts := n.Children[1]
	if len(opts.Children)%2 != 0 {
		return Decl{}, errors.New("boundary options must come in key/value pairs")
	}
	for i := 0; i < len(opts.Children); i += 2 {
		key, val := opts.Children[i].Text, opts.Children[i+1].Text
		switch key {
		case "type":
			d.Config.ShimType = val
		case "wrap":
			d.Config.Wrap = val
		case "unwrap":
			d.Config.Unwrap = val
		case "handle":
			d.Config.Handle = val
		case "finalizer":
			d.Config.Finalizer = val
		case "foreach":
			d.Config.Foreach = val
		default:
			return Decl{}, fmt.Errorf("unknown boundary option %q", key)
		}
	}
	return d, nil
}

// Translate generates boundary code for one declaration node. Declaration
// problems become host diagnostics; only infrastructure failures are
// returned.
func Translate(env *elab.Env, n *ast.Node) error {
	decl, err := parseDecl(n)
	if err != nil {
		diag.ReportError(env.Reporter, diag.BndUnsupportedSignature, n.CoverSpan(),
			fmt.Sprintf("malformed boundary declaration: %v", err)).Emit()
		return nil
	}
	if _, err := Generate(env, decl); err != nil {
		var nameErr *NameError
		var confErr *ConflictError
		switch {
		case errors.As(err, &nameErr):
			diag.ReportError(env.Reporter, diag.BndNameResolution, decl.Span,
				fmt.Sprintf("cannot resolve %q for boundary code generation: %v", nameErr.Name, nameErr.Reason)).Emit()
		case errors.As(err, &confErr):
			diag.ReportError(env.Reporter, diag.BndRegistrationConflict, decl.Span,
				confErr.Error()).
				WithNote(decl.Span, "the first declaration of a boundary type fixes its configuration").Emit()
		case errors.Is(err, ErrMissingFinalizer), errors.Is(err, ErrMissingForeach), errors.Is(err, ErrBadIdentifier):
			diag.ReportError(env.Reporter, diag.BndUnsupportedSignature, decl.Span, err.Error()).Emit()
		default:
			return err
		}
	}
	return nil
}
