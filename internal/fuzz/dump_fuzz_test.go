package fuzztests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"graft/internal/ast"
	"graft/internal/driver"
	"graft/internal/elab"
	"graft/internal/source"
)

const maxFuzzInput = 1 << 16 // 64 KiB

func FuzzLoadDump(f *testing.F) {
	addDumpSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = append([]byte(nil), input[:maxFuzzInput]...)
		}
		path := filepath.Join(t.TempDir(), "fuzz"+driver.DumpExt)
		if err := os.WriteFile(path, input, 0o600); err != nil {
			t.Fatalf("write dump: %v", err)
		}

		fs := source.NewFileSet()
		root, _, err := driver.LoadDump(fs, path)
		if err != nil {
			return
		}
		if root == nil {
			t.Fatalf("LoadDump returned no tree and no error")
		}
		// Декодированный узел обязан либо репринтиться, либо отказать,
		// но не падать.
		root.Walk(func(n *ast.Node) bool {
			_, _ = ast.Reprint(n)
			return true
		})
	})
}

// FuzzCheckDump drives the whole elaborate path over arbitrary dump
// bytes. Inconsistent dumps must come back as diagnostics or errors,
// never as panics.
func FuzzCheckDump(f *testing.F) {
	addDumpSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = append([]byte(nil), input[:maxFuzzInput]...)
		}
		path := filepath.Join(t.TempDir(), "fuzz"+driver.DumpExt)
		if err := os.WriteFile(path, input, 0o600); err != nil {
			t.Fatalf("write dump: %v", err)
		}

		opts := driver.CheckOptions{Elab: elab.DefaultOptions()}
		opts.Elab.Diagnostics = false
		res, err := driver.Check(context.Background(), path, opts)
		if err != nil {
			return
		}
		if res == nil || res.Bag == nil {
			t.Fatalf("Check returned no result and no error")
		}
	})
}
