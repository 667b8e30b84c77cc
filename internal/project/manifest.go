package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"graft/internal/diag"
	"graft/internal/elab"
)

// Defaults used when graft.toml is absent or leaves a key unset.
const (
	DefaultToolPath   = "clangd"
	DefaultLanguageID = "c"
)

// ToolSection configures the external diagnostics tool ([tool]).
type ToolSection struct {
	Path     string
	Args     []string
	Language string
}

// DiagnosticsSection configures diagnostics collection ([diagnostics]).
type DiagnosticsSection struct {
	Enabled          bool
	TimeoutMs        int
	WarningsAsErrors bool
	Max              int
}

// Manifest is a validated graft.toml with defaults applied.
type Manifest struct {
	Path string // manifest file, пустой для Default()
	Root string // каталог манифеста

	Tool        ToolSection
	Diagnostics DiagnosticsSection
}

// ManifestError describes one rejected manifest, carrying the diagnostic
// code the CLI renders it under.
type ManifestError struct {
	Path string
	Code diag.Code
	Msg  string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Default returns the manifest used when no graft.toml exists.
func Default() *Manifest {
	return &Manifest{
		Tool: ToolSection{
			Path:     DefaultToolPath,
			Language: DefaultLanguageID,
		},
		Diagnostics: DiagnosticsSection{
			Enabled:   true,
			TimeoutMs: int(elab.DefaultTimeout / time.Millisecond),
			Max:       elab.DefaultMaxDiagnostics,
		},
	}
}

type fileConfig struct {
	Tool struct {
		Path     string   `toml:"path"`
		Args     []string `toml:"args"`
		Language string   `toml:"language"`
	} `toml:"tool"`
	Diagnostics struct {
		Enabled          bool `toml:"enabled"`
		TimeoutMs        int  `toml:"timeout_ms"`
		WarningsAsErrors bool `toml:"warnings_as_errors"`
		Max              int  `toml:"max"`
	} `toml:"diagnostics"`
}

// Load parses and validates a graft.toml. Unset keys keep their
// defaults; set keys are checked strictly.
func Load(path string) (*Manifest, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, &ManifestError{Path: path, Code: diag.ProjManifestError,
			Msg: fmt.Sprintf("failed to parse TOML: %v", err)}
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		return nil, &ManifestError{Path: path, Code: diag.ProjUnknownKey,
			Msg: fmt.Sprintf("unknown key %q", keys[0].String())}
	}

	m := Default()
	m.Path = path
	m.Root = filepath.Dir(path)

	if meta.IsDefined("tool", "path") {
		p := strings.TrimSpace(cfg.Tool.Path)
		if p == "" {
			return nil, &ManifestError{Path: path, Code: diag.ProjBadToolPath,
				Msg: "[tool].path must not be empty"}
		}
		m.Tool.Path = p
	}
	if meta.IsDefined("tool", "args") {
		m.Tool.Args = cfg.Tool.Args
	}
	if meta.IsDefined("tool", "language") {
		lang := strings.TrimSpace(cfg.Tool.Language)
		if lang == "" {
			return nil, &ManifestError{Path: path, Code: diag.ProjManifestError,
				Msg: "[tool].language must not be empty"}
		}
		m.Tool.Language = lang
	}
	if meta.IsDefined("diagnostics", "enabled") {
		m.Diagnostics.Enabled = cfg.Diagnostics.Enabled
	}
	if meta.IsDefined("diagnostics", "timeout_ms") {
		if cfg.Diagnostics.TimeoutMs <= 0 {
			return nil, &ManifestError{Path: path, Code: diag.ProjBadTimeout,
				Msg: fmt.Sprintf("[diagnostics].timeout_ms must be positive, got %d", cfg.Diagnostics.TimeoutMs)}
		}
		m.Diagnostics.TimeoutMs = cfg.Diagnostics.TimeoutMs
	}
	if meta.IsDefined("diagnostics", "warnings_as_errors") {
		m.Diagnostics.WarningsAsErrors = cfg.Diagnostics.WarningsAsErrors
	}
	if meta.IsDefined("diagnostics", "max") {
		if cfg.Diagnostics.Max <= 0 {
			return nil, &ManifestError{Path: path, Code: diag.ProjManifestError,
				Msg: fmt.Sprintf("[diagnostics].max must be positive, got %d", cfg.Diagnostics.Max)}
		}
		m.Diagnostics.Max = cfg.Diagnostics.Max
	}

	// Путь с разделителем — это файл, а не имя в PATH; проверяем сразу.
	if filepath.Base(m.Tool.Path) != m.Tool.Path {
		resolved := m.Tool.Path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(m.Root, resolved)
		}
		if _, err := os.Stat(resolved); err != nil {
			return nil, &ManifestError{Path: path, Code: diag.ProjBadToolPath,
				Msg: fmt.Sprintf("[tool].path %q: %v", m.Tool.Path, err)}
		}
		m.Tool.Path = resolved
	}
	return m, nil
}

// LoadFromDir walks up from startDir and loads the nearest graft.toml.
// ok is false when no manifest exists; callers fall back to Default.
func LoadFromDir(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := FindGraftToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// ElabOptions maps the manifest onto elaboration options.
func (m *Manifest) ElabOptions() elab.Options {
	return elab.Options{
		Diagnostics:      m.Diagnostics.Enabled,
		Timeout:          time.Duration(m.Diagnostics.TimeoutMs) * time.Millisecond,
		WarningsAsErrors: m.Diagnostics.WarningsAsErrors,
		MaxDiagnostics:   m.Diagnostics.Max,
	}
}
