package source

import "testing"

func TestAddVirtualNormalization(t *testing.T) {
	fs := NewFileSet()

	id := fs.AddVirtual("dump.c", []byte("\xEF\xBB\xBFint x;\r\nint y;\r\n"))
	f := fs.Get(id)

	if string(f.Content) != "int x;\nint y;\n" {
		t.Errorf("content not normalized: %q", f.Content)
	}
	if f.Flags&FileVirtual == 0 {
		t.Error("expected FileVirtual flag")
	}
	if f.Flags&FileHadBOM == 0 {
		t.Error("expected FileHadBOM flag")
	}
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Error("expected FileNormalizedCRLF flag")
	}
}

func TestGetLatestTracksNewestVersion(t *testing.T) {
	fs := NewFileSet()

	first := fs.AddVirtual("main.hst", []byte("v1"))
	second := fs.AddVirtual("main.hst", []byte("v2"))

	if first == second {
		t.Fatal("re-adding a path must mint a fresh id")
	}
	got, ok := fs.GetLatest("main.hst")
	if !ok {
		t.Fatal("GetLatest: path not found")
	}
	if got != second {
		t.Errorf("GetLatest = %d, want %d", got, second)
	}
	if string(fs.Get(first).Content) != "v1" {
		t.Error("old version must stay readable")
	}
}

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.hst", []byte("ab\ncd\nef"))

	tests := []struct {
		name  string
		span  Span
		start LineCol
		end   LineCol
	}{
		{"first line", Span{File: id, Start: 0, End: 2}, LineCol{1, 1}, LineCol{1, 3}},
		{"second line", Span{File: id, Start: 3, End: 5}, LineCol{2, 1}, LineCol{2, 3}},
		{"across newline", Span{File: id, Start: 1, End: 4}, LineCol{1, 2}, LineCol{2, 2}},
		{"last line", Span{File: id, Start: 6, End: 8}, LineCol{3, 1}, LineCol{3, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := fs.Resolve(tt.span)
			if start != tt.start || end != tt.end {
				t.Errorf("Resolve() = %v..%v, want %v..%v", start, end, tt.start, tt.end)
			}
		})
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.hst", []byte("first\nsecond\nthird"))
	f := fs.Get(id)

	tests := []struct {
		line uint32
		want string
	}{
		{0, ""},
		{1, "first"},
		{2, "second"},
		{3, "third"},
		{4, ""},
	}

	for _, tt := range tests {
		if got := f.GetLine(tt.line); got != tt.want {
			t.Errorf("GetLine(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
