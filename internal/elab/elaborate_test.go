package elab

import (
	"errors"
	"testing"

	"graft/internal/ast"
	"graft/internal/diag"
	"graft/internal/source"
	"graft/internal/testkit"
)

func newTestEnv(t *testing.T) (*Env, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(32)
	env := NewEnv(source.NewFileSet(), diag.BagReporter{Bag: bag}, DefaultOptions())
	env.WithRegistry(NewRegistry())
	return env, bag
}

func span(start, end uint32) source.Span {
	return source.Span{File: 1, Start: start, End: end}
}

func TestElaborateRegisteredTranslatorWins(t *testing.T) {
	env, _ := newTestEnv(t)
	env.registry.Register("host.raw", func(env *Env, n *ast.Node) error {
		return env.PushCommand("/* handled */", n.CoverSpan())
	})

	n := &ast.Node{Kind: "host.raw", Text: "verbatim would differ", Span: span(0, 5)}
	if err := Elaborate(env, n); err != nil {
		t.Fatal(err)
	}
	if got := BufferOf(env).Text(); got != "/* handled */\n" {
		t.Errorf("buffer = %q", got)
	}
}

func TestElaborateFallbackReprints(t *testing.T) {
	env, _ := newTestEnv(t)

	n := ast.Atom("extern int errno;", span(4, 21))
	if err := Elaborate(env, n); err != nil {
		t.Fatal(err)
	}

	buf := BufferOf(env)
	if got := buf.Text(); got != "extern int errno;\n" {
		t.Errorf("buffer = %q", got)
	}
	if got := buf.Map().ShimToHost(0); got != span(4, 21) {
		t.Errorf("mark origin = %v, want %v", got, span(4, 21))
	}
}

func TestElaborateMacroExpansion(t *testing.T) {
	env, _ := newTestEnv(t)
	env.Macros = func(env *Env, n *ast.Node) (*ast.Node, bool) {
		if n.Text == "decl_int!(z)" {
			return ast.Atom("int z;", n.Span), true
		}
		return nil, false
	}

	good := &ast.Node{Kind: ast.KindMacro, Text: "decl_int!(z)", Span: span(0, 12)}
	if err := Elaborate(env, good); err != nil {
		t.Fatal(err)
	}
	if got := BufferOf(env).Text(); got != "int z;\n" {
		t.Errorf("buffer = %q", got)
	}

	bad := &ast.Node{Kind: ast.KindMacro, Text: "unknown!", Span: span(20, 28)}
	err := Elaborate(env, bad)
	var unrep *UnreprintableError
	if !errors.As(err, &unrep) {
		t.Fatalf("err = %v, want UnreprintableError", err)
	}
	if unrep.Kind != ast.KindMacro {
		t.Errorf("unrep.Kind = %q", unrep.Kind)
	}
}

func TestSectionContinuesPastUnreprintable(t *testing.T) {
	env, bag := newTestEnv(t)

	section := ast.Group(ast.KindSection, span(0, 40),
		ast.Atom("int a;", span(2, 8)),
		&ast.Node{Kind: ast.KindMissing, Span: span(10, 10)},
		ast.Atom("int b;", span(12, 18)),
	)

	if err := Section(env, section); err != nil {
		t.Fatal(err)
	}

	if got := BufferOf(env).Text(); got != "int a;\nint b;\n" {
		t.Errorf("buffer = %q", got)
	}
	if bag.Len() != 1 {
		t.Fatalf("bag.Len = %d, want 1", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code != diag.ShimUnreprintable || d.Severity != diag.SevError {
		t.Errorf("diagnostic = %v/%v", d.Code, d.Severity)
	}
	if d.Primary != span(10, 10) {
		t.Errorf("diagnostic span = %v", d.Primary)
	}
}

func TestSectionRejectsNesting(t *testing.T) {
	env, bag := newTestEnv(t)
	env.registry.Register(ast.KindSection, func(env *Env, n *ast.Node) error {
		return Section(env, n)
	})

	inner := ast.Group(ast.KindSection, span(5, 15), ast.Atom("int inner;", span(5, 15)))
	outer := ast.Group(ast.KindSection, span(0, 20), inner)

	if err := Section(env, outer); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.ShimNestedSection {
		t.Fatalf("expected single ShimNestedSection, bag = %v", bag.Items())
	}
	// Вложенная секция пропущена целиком
	if got := BufferOf(env).Text(); got != "" {
		t.Errorf("buffer = %q, want empty", got)
	}
}

func TestSectionBufferInvariants(t *testing.T) {
	env, _ := newTestEnv(t)
	env.Macros = func(env *Env, n *ast.Node) (*ast.Node, bool) {
		if n.Kind == ast.KindMacro {
			return ast.Atom("struct conn { int fd; };", n.Span), true
		}
		return nil, false
	}

	section := ast.Group(ast.KindSection, span(0, 60),
		ast.Atom("#include <stddef.h>", span(2, 21)),
		&ast.Node{Kind: ast.KindMacro, Text: "record!(conn)", Span: span(23, 36)},
		ast.Atom("", span(38, 38)),
		ast.Atom("size_t n;", span(40, 49)),
	)
	if err := Section(env, section); err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckBufferInvariants(BufferOf(env)); err != nil {
		t.Fatal(err)
	}
}

func TestSectionRunsDiagnoseHook(t *testing.T) {
	env, _ := newTestEnv(t)

	var hookSpan source.Span
	calls := 0
	env.Diagnose = func(env *Env, section source.Span) {
		calls++
		hookSpan = section
	}

	section := ast.Group(ast.KindSection, span(0, 10), ast.Atom("int a;", span(2, 8)))
	if err := Section(env, section); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("hook calls = %d, want 1", calls)
	}
	if hookSpan != span(0, 10) {
		t.Errorf("hook span = %v", hookSpan)
	}

	env.Options.Diagnostics = false
	if err := Section(env, section); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Error("hook must not run when diagnostics are off")
	}
}
