package elab

import (
	"testing"

	"graft/internal/source"
)

type counterState struct{ n int }

var counterExt = NewExt(func() *counterState { return &counterState{} })

func TestExtLazyInitPerEnv(t *testing.T) {
	envA := NewEnv(source.NewFileSet(), nil, DefaultOptions())
	envB := NewEnv(source.NewFileSet(), nil, DefaultOptions())

	counterExt.Get(envA).n = 3
	if got := counterExt.Get(envA).n; got != 3 {
		t.Errorf("envA counter = %d, want 3", got)
	}
	if got := counterExt.Get(envB).n; got != 0 {
		t.Errorf("envB must get a fresh slot, counter = %d", got)
	}
}

func TestExtSet(t *testing.T) {
	env := NewEnv(source.NewFileSet(), nil, DefaultOptions())
	counterExt.Set(env, &counterState{n: 42})
	if got := counterExt.Get(env).n; got != 42 {
		t.Errorf("counter = %d, want 42", got)
	}
}

func TestBufferOfIsEnvScoped(t *testing.T) {
	envA := NewEnv(source.NewFileSet(), nil, DefaultOptions())
	envB := NewEnv(source.NewFileSet(), nil, DefaultOptions())

	if err := envA.PushCommand("int a;", source.Span{File: 1, Start: 0, End: 6}); err != nil {
		t.Fatal(err)
	}

	if got := BufferOf(envA).Text(); got != "int a;\n" {
		t.Errorf("envA buffer = %q", got)
	}
	if got := BufferOf(envB).Text(); got != "" {
		t.Errorf("envB buffer must stay empty, got %q", got)
	}
}
