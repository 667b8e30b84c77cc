package elab

import (
	"fmt"

	"graft/internal/ast"
	"graft/internal/source"
)

// UnreprintableError reports a node that has no translator and cannot be
// reprinted verbatim (macros, error placeholders, textless leaves).
type UnreprintableError struct {
	Kind ast.Kind
	Span source.Span
}

func (e *UnreprintableError) Error() string {
	return fmt.Sprintf("node %q cannot be reprinted verbatim", e.Kind)
}
