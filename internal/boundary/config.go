// Package boundary generates the foreign-code conversion layer for host
// opaque types: a wrap/unwrap function pair plus a one-time registration
// of the runtime external class that owns the wrapped values. The runtime
// entry points it references (graft_register_extern_class,
// graft_alloc_extern, graft_extern_data) are declared by the host's
// runtime header, not by the generated text.
package boundary

import (
	"errors"
	"fmt"

	"graft/internal/source"
)

// Config describes one boundary type declaration. Finalizer and Foreach
// are the lifecycle callbacks the runtime invokes for values of this
// class; both must name existing foreign functions. The remaining fields
// are optional and default to names derived from the resolved type name.
type Config struct {
	// ShimType — foreign type of the raw payload, "void *" когда пусто.
	ShimType string

	// Wrap, Unwrap, Handle override the derived names.
	Wrap   string
	Unwrap string
	Handle string

	Finalizer string
	Foreach   string
}

// Decl is a parsed boundary declaration: the host type name, its
// configuration, and the host span the emitted text is attributed to.
type Decl struct {
	Name   string
	Config Config
	Span   source.Span
}

var (
	// ErrMissingFinalizer — конфигурация без финализатора.
	ErrMissingFinalizer = errors.New("boundary config needs a finalizer callback")
	// ErrMissingForeach — конфигурация без обходчика ссылок.
	ErrMissingForeach = errors.New("boundary config needs a foreach callback")
	// ErrBadIdentifier marks a name that cannot appear in foreign code.
	ErrBadIdentifier = errors.New("not a valid identifier")
)

func (c *Config) validate() error {
	if c.Finalizer == "" {
		return ErrMissingFinalizer
	}
	if c.Foreach == "" {
		return ErrMissingForeach
	}
	for _, f := range []struct{ field, name string }{
		{"finalizer", c.Finalizer},
		{"foreach", c.Foreach},
		{"wrap", c.Wrap},
		{"unwrap", c.Unwrap},
		{"handle", c.Handle},
	} {
		if f.name != "" && !isIdent(f.name) {
			return fmt.Errorf("%s %q: %w", f.field, f.name, ErrBadIdentifier)
		}
	}
	return nil
}

// NameError reports a declared type name the host could not declare or
// resolve. No foreign text is emitted for such a declaration.
type NameError struct {
	Name   string
	Reason error
}

func (e *NameError) Error() string {
	return fmt.Sprintf("cannot resolve boundary type %q: %v", e.Name, e.Reason)
}

func (e *NameError) Unwrap() error { return e.Reason }

// ConflictError reports a second declaration of an already generated
// class with a configuration that would emit different code.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("boundary class for %q already generated with a different configuration", e.Name)
}
