package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"graft/internal/ast"
	"graft/internal/source"
)

// TreeNodeOutput описывает узел дерева дампа для JSON-вывода.
type TreeNodeOutput struct {
	Kind     string           `json:"kind"`
	Span     source.Span      `json:"span"`
	Text     string           `json:"text,omitempty"`
	Children []TreeNodeOutput `json:"children,omitempty"`
}

// FormatTreePretty prints the surface tree of a decoded elaboration dump.
func FormatTreePretty(w io.Writer, root *ast.Node, fs *source.FileSet) {
	if root == nil {
		fmt.Fprintln(w, "<empty dump>")
		return
	}
	fmt.Fprintf(w, "%s (span: %s)\n", nodeLabel(root), formatSpan(root.Span, fs))
	writeTreeChildren(w, root, fs, "")
}

func writeTreeChildren(w io.Writer, n *ast.Node, fs *source.FileSet, prefix string) {
	for i, child := range n.Children {
		connector, childPrefix := "├─", prefix+"│  "
		if i == len(n.Children)-1 {
			connector, childPrefix = "└─", prefix+"   "
		}
		fmt.Fprintf(w, "%s%s %s (span: %s)\n", prefix, connector, nodeLabel(child), formatSpan(child.Span, fs))
		writeTreeChildren(w, child, fs, childPrefix)
	}
}

// FormatTreeJSON renders the dump tree as indented JSON.
func FormatTreeJSON(w io.Writer, root *ast.Node) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildTreeOutput(root))
}

func buildTreeOutput(n *ast.Node) TreeNodeOutput {
	if n == nil {
		return TreeNodeOutput{Kind: "<nil>"}
	}
	out := TreeNodeOutput{
		Kind: kindLabel(n.Kind),
		Span: n.Span,
		Text: n.Text,
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, buildTreeOutput(child))
	}
	return out
}

func nodeLabel(n *ast.Node) string {
	label := kindLabel(n.Kind)
	if n.Text != "" {
		label = fmt.Sprintf("%s %q", label, summarizeText(n.Text))
	}
	return label
}

func kindLabel(kind ast.Kind) string {
	switch kind {
	case ast.KindAtom:
		return "Atom"
	case ast.KindGroup:
		return "Group"
	case ast.KindMacro:
		return "Macro"
	case ast.KindMissing:
		return "Missing"
	case ast.KindSection:
		return "Section"
	case ast.KindBoundary:
		return "Boundary"
	default:
		// Хостовые kind'ы показываем как есть.
		return string(kind)
	}
}

// summarizeText fits node text onto one tree line.
func summarizeText(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + "…"
	}
	return runewidth.Truncate(text, 32, "…")
}

func formatSpan(span source.Span, fs *source.FileSet) (out string) {
	defer func() {
		// Дампам разрешено ссылаться на неизвестные файлы.
		if recover() != nil {
			out = fmt.Sprintf("span(%d-%d)", span.Start, span.End)
		}
	}()
	if fs != nil {
		start, end := fs.Resolve(span)
		return fmt.Sprintf("%d:%d-%d:%d", start.Line, start.Col, end.Line, end.Col)
	}
	return fmt.Sprintf("span(%d-%d)", span.Start, span.End)
}
