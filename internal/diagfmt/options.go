package diagfmt

import (
	"os"
	"path/filepath"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Context   int8 // строк контекста вокруг находки, <0 — без сниппета
	PathMode  PathMode
	BaseDir   string // база для относительных путей, "" — текущая директория
	Width     uint8  // максимальная ширина строки контекста, 0 — не ограничено
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool // добавить line/col
	PathMode         PathMode
	BaseDir          string
	Max              int // обрезка вывода, не Bag
	IncludeNotes     bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}

// formatPath renders path according to mode. Host frontends hand us
// paths as-is, so every mode has to survive both absolute and relative
// input and virtual names like "shim.c".
func formatPath(path string, mode PathMode, baseDir string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.ToSlash(abs)
		}
		return path

	case PathModeRelative:
		base := baseDir
		if base == "" {
			if wd, err := os.Getwd(); err == nil {
				base = wd
			}
		}
		if rel, err := filepath.Rel(base, path); err == nil {
			return filepath.ToSlash(rel)
		}
		return path

	case PathModeBasename:
		return filepath.Base(path)

	case PathModeAuto:
		// Короткий или относительный путь — как есть, длинный абсолютный — basename.
		if len(path) < 40 || !filepath.IsAbs(path) {
			return path
		}
		return filepath.Base(path)

	default:
		return path
	}
}
