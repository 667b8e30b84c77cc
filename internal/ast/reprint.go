package ast

import "strings"

// Reprint reconstructs the exact source text of a node.
//
// A node reprints verbatim when it carries its own text slice, or when every
// child reprints. Macro and missing nodes never reprint: an unexpanded macro
// has no surface form, and a missing node stands for text that was never
// there. Returns ok=false when reconstruction is impossible.
func Reprint(n *Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case KindMacro, KindMissing:
		return "", false
	}
	if n.Text != "" {
		return n.Text, true
	}
	if len(n.Children) == 0 {
		// Лист без текста — печатать нечего.
		return "", false
	}

	var b strings.Builder
	for _, c := range n.Children {
		part, ok := Reprint(c)
		if !ok {
			return "", false
		}
		b.WriteString(part)
	}
	return b.String(), true
}
