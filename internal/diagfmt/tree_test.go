package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"graft/internal/ast"
	"graft/internal/source"
)

func treeSpan(start, end uint32) source.Span {
	return source.Span{File: 0, Start: start, End: end}
}

func TestFormatTreePretty(t *testing.T) {
	fs := source.NewFileSet()
	fs.Add("src/main.host", []byte("section c { int a; }\nmore host text here after\n"), 0)

	root := ast.Group(ast.KindGroup, treeSpan(0, 46),
		ast.Group(ast.KindSection, treeSpan(0, 20),
			ast.Atom("int a;", treeSpan(12, 18)),
		),
		ast.Atom("more host text", treeSpan(21, 35)),
	)

	var buf bytes.Buffer
	FormatTreePretty(&buf, root, fs)

	want := "Group (span: 1:1-2:26)\n" +
		"├─ Section (span: 1:1-1:21)\n" +
		"│  └─ Atom \"int a;\" (span: 1:13-1:19)\n" +
		"└─ Atom \"more host text\" (span: 2:1-2:15)\n"
	if got := buf.String(); got != want {
		t.Fatalf("tree output mismatch:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestFormatTreePrettyWithoutFileSet(t *testing.T) {
	root := ast.Group(ast.KindBoundary, treeSpan(5, 30),
		ast.Atom("db.Conn", treeSpan(10, 17)),
	)

	var buf bytes.Buffer
	FormatTreePretty(&buf, root, nil)

	out := buf.String()
	if !strings.Contains(out, "Boundary (span: span(5-30))") {
		t.Fatalf("expected byte-offset spans without a FileSet, got:\n%s", out)
	}
	if !strings.Contains(out, `└─ Atom "db.Conn"`) {
		t.Fatalf("expected atom child, got:\n%s", out)
	}
}

func TestFormatTreePrettySummarizesText(t *testing.T) {
	longText := "первая строка очень длинного атома\nвторая строка"
	root := ast.Atom(longText, treeSpan(0, 10))

	var buf bytes.Buffer
	FormatTreePretty(&buf, root, nil)

	out := buf.String()
	if strings.Contains(out, "вторая") {
		t.Fatalf("multi-line text must be cut at the first newline, got:\n%s", out)
	}
	if !strings.Contains(out, "…") {
		t.Fatalf("truncated text must carry an ellipsis, got:\n%s", out)
	}
}

func TestFormatTreeJSON(t *testing.T) {
	root := ast.Group(ast.KindSection, treeSpan(0, 20),
		ast.Atom("int a;", treeSpan(12, 18)),
	)

	var buf bytes.Buffer
	if err := FormatTreeJSON(&buf, root); err != nil {
		t.Fatalf("FormatTreeJSON: %v", err)
	}

	var out TreeNodeOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Kind != "Section" {
		t.Errorf("kind = %q, want Section", out.Kind)
	}
	if len(out.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(out.Children))
	}
	child := out.Children[0]
	if child.Kind != "Atom" || child.Text != "int a;" {
		t.Errorf("child = %+v", child)
	}
	if child.Span.Start != 12 || child.Span.End != 18 {
		t.Errorf("child span = %+v, want [12,18)", child.Span)
	}
}
