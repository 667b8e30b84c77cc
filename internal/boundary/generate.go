package boundary

import (
	"fmt"
	"strings"

	"graft/internal/elab"
)

// Pair holds the conversion function names generated for one boundary
// type. Other generation sites look these up to convert values of the
// type without re-deriving names.
type Pair struct {
	Wrap   string
	Unwrap string
}

type derivedNames struct {
	wrap   string
	unwrap string
	handle string
}

func deriveNames(resolved string, cfg Config) derivedNames {
	m := mangle(resolved)
	n := derivedNames{
		wrap:   "_graft_wrap_" + m,
		unwrap: "_graft_unwrap_" + m,
		handle: "_graft_class_" + m,
	}
	if cfg.Wrap != "" {
		n.wrap = cfg.Wrap
	}
	if cfg.Unwrap != "" {
		n.unwrap = cfg.Unwrap
	}
	if cfg.Handle != "" {
		n.handle = cfg.Handle
	}
	return n
}

// renderPair builds the foreign text for one boundary type: the static
// class handle, the wrap function with its guarded lazy registration,
// and the unwrap function. Registration runs inside wrap so the class
// exists at most once per process no matter how often the module loads.
func renderPair(n derivedNames, cfg Config) string {
	typ := cfg.ShimType
	if typ == "" {
		typ = "void *"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "static void *%s = NULL;\n\n", n.handle)
	fmt.Fprintf(&b, "static void *%s(%s) {\n", n.wrap, cDecl(typ, "data"))
	fmt.Fprintf(&b, "  if (%s == NULL) {\n", n.handle)
	fmt.Fprintf(&b, "    %s = graft_register_extern_class(%s, %s);\n", n.handle, cfg.Finalizer, cfg.Foreach)
	b.WriteString("  }\n")
	fmt.Fprintf(&b, "  return graft_alloc_extern(%s, (void *)data);\n", n.handle)
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "static %s(void *obj) {\n", cDecl(typ, n.unwrap))
	fmt.Fprintf(&b, "  return (%s)graft_extern_data(obj);\n", typ)
	b.WriteString("}")
	return b.String()
}

// Generate emits the conversion layer for one boundary declaration and
// records the resulting pair in the environment's table.
//
// The host declaration hook runs first, then the declared name is
// resolved; a failure in either step returns a NameError and emits
// nothing. A repeated declaration that would emit identical text returns
// the recorded pair without emitting again; one that would emit
// different text returns a ConflictError.
func Generate(env *elab.Env, decl Decl) (Pair, error) {
	if err := decl.Config.validate(); err != nil {
		return Pair{}, err
	}
	if env.Declare != nil {
		if err := env.Declare(decl.Name); err != nil {
			return Pair{}, &NameError{Name: decl.Name, Reason: err}
		}
	}
	resolved := decl.Name
	if env.Resolver != nil {
		r, err := env.Resolver(decl.Name)
		if err != nil {
			return Pair{}, &NameError{Name: decl.Name, Reason: err}
		}
		resolved = r
	}

	names := deriveNames(resolved, decl.Config)
	text := renderPair(names, decl.Config)
	pair := Pair{Wrap: names.wrap, Unwrap: names.unwrap}

	tbl := TableOf(env)
	if prev, ok := tbl.entries[resolved]; ok {
		if prev.text == text {
			return prev.pair, nil
		}
		return Pair{}, &ConflictError{Name: resolved}
	}
	if err := env.PushCommand(text, decl.Span); err != nil {
		return Pair{}, err
	}
	// Запись в таблицу только после успешного push.
	tbl.entries[resolved] = entry{pair: pair, text: text}
	return pair, nil
}
