package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"graft/internal/ast"
	"graft/internal/driver"
	"graft/internal/source"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB — ограничение для тестового корпуса
)

// addDumpSeeds seeds the corpus with one well-formed dump, mechanical
// corruptions of it, and any *.graft fixtures under testdata.
func addDumpSeeds(f *testing.F) {
	addTestdataSeeds(f)

	valid := encodeSeedDump(f)
	f.Add(valid)
	if len(valid) > 2 {
		f.Add(clampSeed(valid[:len(valid)/2]))
		flipped := clampSeed(valid)
		flipped[0] ^= 0xff
		f.Add(flipped)
	}
	f.Add([]byte{})
	f.Add([]byte("not a msgpack dump"))
}

// encodeSeedDump builds the bytes of a dump with one section and a
// couple of commands, going through the same writer frontends use.
func encodeSeedDump(f *testing.F) []byte {
	host := "conn {\n    #include <stddef.h>\n    size_t fd_count;\n}\n"
	section := ast.Group(ast.KindSection, source.Span{Start: 0, End: uint32(len(host)) - 1},
		ast.Atom("#include <stddef.h>", source.Span{Start: 11, End: 30}),
		ast.Atom("size_t fd_count;", source.Span{Start: 35, End: 51}),
	)
	path := filepath.Join(f.TempDir(), "seed"+driver.DumpExt)
	if err := driver.WriteDump(path, "seed.host", host, section); err != nil {
		f.Fatalf("WriteDump: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.Fatalf("read seed dump: %v", err)
	}
	return clampSeed(data)
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем все *.graft файлы
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != driver.DumpExt {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
