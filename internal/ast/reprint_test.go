package ast

import (
	"testing"

	"graft/internal/source"
)

func span(start, end uint32) source.Span {
	return source.Span{File: 1, Start: start, End: end}
}

func TestReprint(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
		ok   bool
	}{
		{
			"atom",
			Atom("int x;", span(0, 6)),
			"int x;", true,
		},
		{
			"group concatenates children in order",
			Group(KindGroup, span(0, 10),
				Atom("int ", span(0, 4)),
				Atom("x", span(4, 5)),
				Atom(";", span(5, 6)),
			),
			"int x;", true,
		},
		{
			"node text wins over children",
			&Node{
				Kind: KindGroup, Text: "original", Span: span(0, 8),
				Children: []*Node{Atom("ignored", span(0, 7))},
			},
			"original", true,
		},
		{
			"nested groups",
			Group(KindGroup, span(0, 9),
				Group("host.call", span(0, 5), Atom("f", span(0, 1)), Atom("(a)", span(1, 4))),
				Atom(";", span(4, 5)),
			),
			"f(a);", true,
		},
		{
			"macro never reprints",
			&Node{Kind: KindMacro, Text: "my_macro!", Span: span(0, 9)},
			"", false,
		},
		{
			"missing never reprints",
			&Node{Kind: KindMissing, Span: span(3, 3)},
			"", false,
		},
		{
			"textless leaf fails",
			&Node{Kind: KindAtom, Span: span(0, 0)},
			"", false,
		},
		{
			"failure propagates from child",
			Group(KindGroup, span(0, 10),
				Atom("ok", span(0, 2)),
				&Node{Kind: KindMissing, Span: span(2, 2)},
			),
			"", false,
		},
		{
			"nil node",
			nil,
			"", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Reprint(tt.node)
			if ok != tt.ok {
				t.Fatalf("Reprint ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Reprint = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoverSpan(t *testing.T) {
	n := Group(KindSection, source.Span{},
		Atom("a", span(10, 11)),
		Group(KindGroup, source.Span{}, Atom("b", span(2, 3))),
	)
	got := n.CoverSpan()
	want := span(2, 11)
	if got != want {
		t.Errorf("CoverSpan = %v, want %v", got, want)
	}
}

func TestWalkPruning(t *testing.T) {
	tree := Group(KindGroup, span(0, 10),
		Group(KindMacro, span(0, 5), Atom("inner", span(0, 5))),
		Atom("tail", span(5, 9)),
	)

	var visited []Kind
	tree.Walk(func(n *Node) bool {
		visited = append(visited, n.Kind)
		return n.Kind != KindMacro // не заходим внутрь макроса
	})

	want := []Kind{KindGroup, KindMacro, KindAtom}
	if len(visited) != len(want) {
		t.Fatalf("visited %d nodes, want %d (%v)", len(visited), len(want), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}
