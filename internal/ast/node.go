package ast

import (
	"graft/internal/source"
)

// Kind identifies the syntactic category of a node. Host frontends mint
// their own kinds; only the ones below have meaning to the elaborator.
type Kind string

const (
	// KindAtom — лист с точным текстом из исходника.
	KindAtom Kind = "atom"
	// KindGroup — узел без собственного текста, печатается через детей.
	KindGroup Kind = "group"
	// KindMacro is an unexpanded macro invocation. It has no surface form
	// until the host expands it.
	KindMacro Kind = "macro"
	// KindMissing marks a parse-error placeholder inserted by the host.
	KindMissing Kind = "missing"

	// KindSection opens an embedded foreign-code region in the host file.
	KindSection Kind = "graft.section"
	// KindBoundary requests wrapper/unwrapper generation for a host symbol.
	KindBoundary Kind = "graft.boundary"
)

// Node is one vertex of the host surface tree as delivered by an
// elaboration dump. Nodes are immutable after decoding.
type Node struct {
	Kind     Kind
	Text     string // точный срез исходника; пуст для групп
	Span     source.Span
	Children []*Node
}

// IsLeaf reports whether node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk обходит дерево в preorder. Если fn вернула false,
// дети этого узла не посещаются.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// CoverSpan returns the union of the node's own span and all child spans.
// Dumps are allowed to leave inner spans empty; the cover is the best
// position we can attribute to the node.
func (n *Node) CoverSpan() source.Span {
	sp := n.Span
	for _, c := range n.Children {
		sp = sp.Cover(c.CoverSpan())
	}
	return sp
}

// Atom constructs a leaf node carrying exact source text.
func Atom(text string, sp source.Span) *Node {
	return &Node{Kind: KindAtom, Text: text, Span: sp}
}

// Group constructs an interior node printed through its children.
func Group(kind Kind, sp source.Span, children ...*Node) *Node {
	return &Node{Kind: kind, Span: sp, Children: children}
}
