package remap

import (
	"encoding/json"
	"strings"
	"testing"

	"graft/internal/diag"
	"graft/internal/lsp"
	"graft/internal/shim"
	"graft/internal/source"
)

// buildShim накапливает команды и возвращает текст с картой позиций.
func buildShim(t *testing.T, cmds ...shim.Command) *shim.Buffer {
	t.Helper()
	b := shim.NewBuffer()
	for _, c := range cmds {
		if err := b.Push(c.Text, c.Origin); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func toolDiag(line, char, sev int, msg string) lsp.Diagnostic {
	return lsp.Diagnostic{
		Range:    lsp.Range{Start: lsp.Position{Line: line, Character: char}},
		Severity: sev,
		Message:  msg,
	}
}

func TestRemapAttributesToCommandOrigin(t *testing.T) {
	buf := buildShim(t,
		shim.Command{Text: "int x;", Origin: source.Span{File: 3, Start: 10, End: 16}},
		shim.Command{Text: "int y = x;", Origin: source.Span{File: 3, Start: 20, End: 30}},
	)

	bag := diag.NewBag(8)
	m := &Mapper{Text: buf.Text(), Map: buf.Map(), HostFile: 3}
	// Строка 1 — вторая команда
	m.Remap([]lsp.Diagnostic{toolDiag(1, 8, lsp.SeverityError, "use of undeclared identifier 'x'")},
		diag.BagReporter{Bag: bag})

	if bag.Len() != 1 {
		t.Fatalf("bag.Len = %d", bag.Len())
	}
	d := bag.Items()[0]
	if d.Primary != (source.Span{File: 3, Start: 20, End: 30}) {
		t.Errorf("primary = %v, want second command's origin", d.Primary)
	}
	if d.Code != diag.ToolDiagnostic || d.Severity != diag.SevError {
		t.Errorf("code/severity = %v/%v", d.Code, d.Severity)
	}
}

func TestRemapSentinelFallsBackToHostFile(t *testing.T) {
	// Пустой буфер: ни одной метки
	buf := shim.NewBuffer()
	bag := diag.NewBag(8)
	m := &Mapper{Text: "", Map: buf.Map(), HostFile: 7}

	m.Remap([]lsp.Diagnostic{toolDiag(0, 0, lsp.SeverityError, "expected identifier")},
		diag.BagReporter{Bag: bag})

	if bag.Len() != 1 {
		t.Fatalf("diagnostic was dropped")
	}
	d := bag.Items()[0]
	if d.Primary.File != 7 || d.Primary.Start != 0 {
		t.Errorf("primary = %v, want start of host file 7", d.Primary)
	}
}

func TestRemapSeverities(t *testing.T) {
	tests := []struct {
		name      string
		toolSev   int
		warnAsErr bool
		want      diag.Severity
	}{
		{"error", lsp.SeverityError, false, diag.SevError},
		{"warning", lsp.SeverityWarning, false, diag.SevWarning},
		{"warning upgraded", lsp.SeverityWarning, true, diag.SevError},
		{"information", lsp.SeverityInformation, false, diag.SevInfo},
		{"hint", lsp.SeverityHint, false, diag.SevInfo},
		{"absent severity reads as error", 0, false, diag.SevError},
	}

	buf := buildShim(t, shim.Command{Text: "int x;", Origin: source.Span{File: 1, Start: 0, End: 6}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diag.NewBag(4)
			m := &Mapper{Text: buf.Text(), Map: buf.Map(), HostFile: 1, WarningsAsErrors: tt.warnAsErr}
			m.Remap([]lsp.Diagnostic{toolDiag(0, 0, tt.toolSev, "msg")}, diag.BagReporter{Bag: bag})
			if got := bag.Items()[0].Severity; got != tt.want {
				t.Errorf("severity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemapDropsStaleRecords(t *testing.T) {
	buf := buildShim(t,
		shim.Command{Text: "int a;", Origin: source.Span{File: 2, Start: 0, End: 6}},
		shim.Command{Text: "int b;", Origin: source.Span{File: 2, Start: 10, End: 16}},
	)
	// Раунд второй секции: всё, что закончилось до начала "int b;", уже доложено.
	m := &Mapper{Text: buf.Text(), Map: buf.Map(), HostFile: 2, MinShimOffset: 7}

	diags := []lsp.Diagnostic{
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 6}},
			Severity: lsp.SeverityError, Message: "stale finding"},
		{Range: lsp.Range{Start: lsp.Position{Line: 1, Character: 0}, End: lsp.Position{Line: 1, Character: 6}},
			Severity: lsp.SeverityError, Message: "current finding"},
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 6}, End: lsp.Position{Line: 1, Character: 0}},
			Severity: lsp.SeverityError, Message: "ends exactly at the cutoff"},
	}
	bag := diag.NewBag(8)
	m.Remap(diags, diag.BagReporter{Bag: bag})

	if bag.Len() != 2 {
		t.Fatalf("bag.Len = %d, want 2 (stale finding dropped)", bag.Len())
	}
	for _, d := range bag.Items() {
		if d.Message == "stale finding" {
			t.Error("record ending before the cutoff must be discarded")
		}
	}
}

func TestRemapCleansMessages(t *testing.T) {
	buf := buildShim(t, shim.Command{Text: "int x", Origin: source.Span{File: 1, Start: 0, End: 5}})
	bag := diag.NewBag(4)
	m := &Mapper{Text: buf.Text(), Map: buf.Map(), HostFile: 1}

	m.Remap([]lsp.Diagnostic{
		toolDiag(0, 4, lsp.SeverityError, "expected ';' (fix available)\nnul:1:1: note: to match this"),
		toolDiag(0, 0, lsp.SeverityWarning, "nul:1:1: only noise"),
	}, diag.BagReporter{Bag: bag})

	if bag.Len() != 2 {
		t.Fatalf("bag.Len = %d", bag.Len())
	}
	if got := bag.Items()[0].Message; got != "expected ';'" {
		t.Errorf("message = %q", got)
	}
	// Диагностика с полностью вычищенным сообщением не пропадает
	if got := bag.Items()[1].Message; got == "" {
		t.Error("empty cleaned message must get a placeholder")
	}
}

func TestRemapKeepsToolCodeAsNote(t *testing.T) {
	buf := buildShim(t, shim.Command{Text: "int x;", Origin: source.Span{File: 1, Start: 0, End: 6}})
	bag := diag.NewBag(4)
	m := &Mapper{Text: buf.Text(), Map: buf.Map(), HostFile: 1}

	d := toolDiag(0, 0, lsp.SeverityError, "use of undeclared identifier")
	d.Code = json.RawMessage(`"undeclared_var_use"`)
	m.Remap([]lsp.Diagnostic{d}, diag.BagReporter{Bag: bag})

	notes := bag.Items()[0].Notes
	if len(notes) != 1 || !strings.Contains(notes[0].Msg, "undeclared_var_use") {
		t.Errorf("notes = %+v", notes)
	}
}

func TestOffsetForPositionUTF16(t *testing.T) {
	// 𝛼 — вне BMP, две UTF-16 единицы, четыре байта UTF-8
	text := "a𝛼b\ncd"
	tests := []struct {
		name string
		pos  lsp.Position
		want int
	}{
		{"line start", lsp.Position{Line: 0, Character: 0}, 0},
		{"after ascii", lsp.Position{Line: 0, Character: 1}, 1},
		{"after surrogate pair", lsp.Position{Line: 0, Character: 3}, 5},
		{"second line", lsp.Position{Line: 1, Character: 1}, 8},
		{"char past line end clamps", lsp.Position{Line: 0, Character: 99}, 6},
		{"line past document clamps", lsp.Position{Line: 9, Character: 0}, len(text)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := offsetForPosition(text, tt.pos); got != tt.want {
				t.Errorf("offsetForPosition(%+v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}
