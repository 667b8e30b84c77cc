package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"graft/internal/ast"
	"graft/internal/driver"
	"graft/internal/source"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new graft project",
	Long: `Initialize a graft project by creating a project manifest (graft.toml)
and an example elaboration dump (example.graft). If [path] is omitted,
initializes the current directory. If a non-existing path is provided, a
directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// runInit initializes a graft project at the target path: it writes a
// graft.toml with every knob at its default and an example dump that
// `graft check` accepts as-is. It refuses to run when graft.toml
// already exists.
func runInit(cmd *cobra.Command, args []string) error {
	// Resolve target directory
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		// treat as path or name relative to cwd
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	// Ensure directory exists
	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	manifestPath := filepath.Join(target, "graft.toml")
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}
	if err := os.WriteFile(manifestPath, []byte(defaultManifestTOML()), os.FileMode(0o600)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	examplePath := filepath.Join(target, "example"+driver.DumpExt)
	createdExample := false
	if _, err := os.Stat(examplePath); errors.Is(err, os.ErrNotExist) {
		root, host := buildExampleDump()
		if err := driver.WriteDump(examplePath, "example.host", host, root); err != nil {
			return fmt.Errorf("failed to write example dump: %w", err)
		}
		createdExample = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(os.Stdout, "Initialized graft project in %s\n", rel)
	fmt.Fprintf(os.Stdout, "  - graft.toml\n")
	if createdExample {
		fmt.Fprintf(os.Stdout, "  - example%s\n", driver.DumpExt)
	} else {
		fmt.Fprintf(os.Stdout, "  - example%s (existing)\n", driver.DumpExt)
	}
	return nil
}

// defaultManifestTOML returns the manifest with every key spelled out at
// its default, so the file doubles as documentation.
func defaultManifestTOML() string {
	return `# graft project manifest
[tool]
path = "clangd"
# args = ["--compile-commands-dir=build"]
language = "c"

[diagnostics]
enabled = true
timeout_ms = 1000
warnings_as_errors = false
max = 256
`
}

// buildExampleDump produces the dump a host frontend would emit for one
// foreign-code section holding two plain commands.
func buildExampleDump() (*ast.Node, string) {
	host := "greet {\n    #include <stddef.h>\n    size_t greeting_len(const char *s);\n}\n"
	commands := []string{
		"#include <stddef.h>",
		"size_t greeting_len(const char *s);",
	}
	children := make([]*ast.Node, 0, len(commands))
	for _, text := range commands {
		start := uint32(strings.Index(host, text))
		children = append(children, ast.Atom(text, source.Span{Start: start, End: start + uint32(len(text))}))
	}
	section := ast.Group(ast.KindSection, source.Span{Start: 0, End: uint32(len(host)) - 1}, children...)
	return section, host
}
