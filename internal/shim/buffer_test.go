package shim

import (
	"strings"
	"testing"

	"graft/internal/source"
)

func TestBufferPush(t *testing.T) {
	b := NewBuffer()

	if err := b.Push("int x;", hostSpan(10, 20)); err != nil {
		t.Fatal(err)
	}
	if err := b.Push("int y;", hostSpan(30, 40)); err != nil {
		t.Fatal(err)
	}

	if got := b.Text(); got != "int x;\nint y;\n" {
		t.Errorf("Text = %q", got)
	}
	if got := b.EndOffset(); got != 14 {
		t.Errorf("EndOffset = %d, want 14", got)
	}
	if got := b.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestBufferMarksAlignWithCommands(t *testing.T) {
	b := NewBuffer()
	cmds := []struct {
		text   string
		origin source.Span
	}{
		{"void f(void);", hostSpan(0, 13)},
		{"", hostSpan(14, 14)}, // пустая команда
		{"void g(void) {}", hostSpan(20, 35)},
	}

	for _, c := range cmds {
		if err := b.Push(c.text, c.origin); err != nil {
			t.Fatal(err)
		}
	}

	marks := b.Map().Marks()
	if len(marks) != len(cmds) {
		t.Fatalf("marks = %d, want %d", len(marks), len(cmds))
	}

	// Каждая метка указывает ровно на начало своей команды в тексте
	text := b.Text()
	wantOff := uint32(0)
	for i, c := range cmds {
		if marks[i].ShimStart != wantOff {
			t.Errorf("mark %d at %d, want %d", i, marks[i].ShimStart, wantOff)
		}
		if marks[i].Origin != c.origin {
			t.Errorf("mark %d origin = %v, want %v", i, marks[i].Origin, c.origin)
		}
		if !strings.HasPrefix(text[wantOff:], c.text+"\n") {
			t.Errorf("text at %d = %q..., want %q", wantOff, text[wantOff:], c.text)
		}
		wantOff += uint32(len(c.text)) + 1
	}
}

func TestBufferRoundTrip(t *testing.T) {
	b := NewBuffer()
	origins := []source.Span{hostSpan(5, 9), hostSpan(12, 30), hostSpan(31, 31)}
	for i, o := range origins {
		if err := b.Push(strings.Repeat("x", i+3)+";", o); err != nil {
			t.Fatal(err)
		}
	}

	// Любой offset внутри команды отображается в её origin
	for i, mark := range b.Map().Marks() {
		if got := b.Map().ShimToHost(mark.ShimStart); got != origins[i] {
			t.Errorf("ShimToHost(start of cmd %d) = %v, want %v", i, got, origins[i])
		}
		mid := mark.ShimStart + 2
		if got := b.Map().ShimToHost(mid); got != origins[i] {
			t.Errorf("ShimToHost(mid of cmd %d) = %v, want %v", i, got, origins[i])
		}
	}
}

func TestBufferSentinelBeforeFirstPush(t *testing.T) {
	b := NewBuffer()
	if got := b.Map().ShimToHost(0); !got.IsZero() {
		t.Errorf("fresh buffer must map to zero span, got %v", got)
	}
	if b.EndOffset() != 0 {
		t.Errorf("fresh buffer EndOffset = %d", b.EndOffset())
	}
}
