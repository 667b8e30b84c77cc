package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"graft/internal/ast"
	"graft/internal/boundary"
	"graft/internal/diag"
	"graft/internal/diagfmt"
	"graft/internal/elab"
	"graft/internal/lsp"
	"graft/internal/project"
	"graft/internal/remap"
	"graft/internal/source"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive foreign-code scratchpad",
	Long: `Repl accumulates C lines the way section elaboration does and checks
the scratchpad against the external tool on demand. Boundary declarations
are elaborated through the same translator the dump path uses.

Commands: :check, :boundary, :show, :reset, :quit.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("tool", "", "diagnostics tool executable (overrides manifest)")
	replCmd.Flags().Duration("timeout", 0, "per-round tool timeout (overrides manifest)")
	replCmd.Flags().Bool("warnings-as-errors", false, "treat tool warnings as errors")
}

func runRepl(cmd *cobra.Command, args []string) error {
	toolPath, err := cmd.Flags().GetString("tool")
	if err != nil {
		return fmt.Errorf("failed to get tool flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	_, logCleanup, err := setupDebugLogging(cmd)
	if err != nil {
		return err
	}
	defer logCleanup()

	manifest, found, err := project.LoadFromDir(".")
	if err != nil {
		return err
	}
	if !found {
		manifest = project.Default()
	}
	opts := manifest.ElabOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if warningsAsErrors {
		opts.WarningsAsErrors = true
	}

	scratch := &replScratchpad{
		cfg: lsp.Config{
			Path:       manifest.Tool.Path,
			Args:       manifest.Tool.Args,
			RootDir:    manifest.Root,
			LanguageID: manifest.Tool.Language,
		},
		timeout: opts.Timeout,
		wae:     opts.WarningsAsErrors,
		max:     opts.MaxDiagnostics,
		color:   colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout)),
	}
	if toolPath != "" {
		scratch.cfg.Path = toolPath
	}
	defer scratch.close()

	histPath := replHistoryPath()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Println("graft scratchpad. Type C lines; :help lists commands.")
	for {
		line, err := ln.Prompt("c> ")
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ":") {
			fields := strings.Fields(trimmed)
			switch strings.ToLower(fields[0]) {
			case ":quit", ":q":
				return nil
			case ":check":
				scratch.check(cmd.Context(), os.Stdout)
			case ":boundary":
				scratch.addBoundary(trimmed, fields[1:], os.Stdout)
			case ":show":
				scratch.show(os.Stdout)
			case ":reset":
				scratch.entries = scratch.entries[:0]
				fmt.Println("scratchpad cleared")
			case ":help":
				fmt.Println("  :check     run a diagnostics round over the scratchpad")
				fmt.Println("  :boundary  <name> <finalizer> <foreach> [type]  append a wrap/unwrap pair")
				fmt.Println("  :show      print the accumulated lines")
				fmt.Println("  :reset     clear the scratchpad")
				fmt.Println("  :quit      exit")
			default:
				fmt.Println("unknown command. Type :help.")
			}
			ln.AppendHistory(trimmed)
			continue
		}
		if trimmed == "" {
			continue
		}

		// Пустые строки не копим, отступы сохраняем.
		scratch.entries = append(scratch.entries, replEntry{raw: line})
		ln.AppendHistory(line)
	}
}

// replEntry is one scratchpad line: a C line when decl is nil, otherwise
// the boundary declaration the raw command text stands for.
type replEntry struct {
	raw  string
	decl *boundary.Decl
}

// replScratchpad holds the accumulated entries and the tool spawned for
// them. The tool survives between rounds and is respawned when it dies.
type replScratchpad struct {
	cfg     lsp.Config
	timeout time.Duration
	wae     bool
	max     int
	color   bool

	entries []replEntry
	tool    *lsp.Tool
	session *lsp.Session
}

func (r *replScratchpad) ensureTool(ctx context.Context) error {
	if r.tool != nil && r.tool.Alive() {
		return nil
	}
	tool, err := lsp.Start(ctx, r.cfg)
	if err != nil {
		return err
	}
	r.tool = tool
	r.session = lsp.NewSession(tool)
	return nil
}

func (r *replScratchpad) close() {
	if r.tool == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.tool.Shutdown(ctx); err != nil {
		r.tool.Kill()
	}
	r.tool = nil
	r.session = nil
}

// addBoundary validates a :boundary command and appends it to the
// scratchpad. The declaration is replayed against a throwaway
// environment first, after the already recorded ones, so configuration
// mistakes and conflicts surface at entry time rather than at :check.
func (r *replScratchpad) addBoundary(raw string, args []string, out io.Writer) {
	if len(args) < 3 {
		fmt.Fprintln(out, "usage: :boundary <name> <finalizer> <foreach> [shim-type]")
		return
	}
	decl := boundary.Decl{
		Name: args[0],
		Config: boundary.Config{
			Finalizer: args[1],
			Foreach:   args[2],
			ShimType:  strings.Join(args[3:], " "),
		},
	}

	tmp := elab.NewEnv(source.NewFileSet(), diag.NopReporter{}, elab.Options{})
	for _, e := range r.entries {
		if e.decl != nil {
			_, _ = boundary.Generate(tmp, *e.decl)
		}
	}
	pair, err := boundary.Generate(tmp, decl)
	if err != nil {
		fmt.Fprintf(out, "rejected: %v\n", err)
		return
	}

	r.entries = append(r.entries, replEntry{raw: raw, decl: &decl})
	fmt.Fprintf(out, "will generate %s / %s\n", pair.Wrap, pair.Unwrap)
}

// boundaryNode encodes a declaration the way host frontends dump it: the
// type name atom followed by a group of key/value option atoms.
func boundaryNode(d boundary.Decl, span source.Span) *ast.Node {
	var kv []*ast.Node
	add := func(key, val string) {
		if val != "" {
			kv = append(kv, ast.Atom(key, span), ast.Atom(val, span))
		}
	}
	add("type", d.Config.ShimType)
	add("finalizer", d.Config.Finalizer)
	add("foreach", d.Config.Foreach)

	children := []*ast.Node{ast.Atom(d.Name, span)}
	if len(kv) > 0 {
		children = append(children, ast.Group(ast.KindGroup, span, kv...))
	}
	return ast.Group(ast.KindBoundary, span, children...)
}

// check replays the scratchpad through a fresh elaboration environment,
// runs one diagnostics round over the accumulated text, and prints the
// findings positioned on scratchpad lines.
func (r *replScratchpad) check(ctx context.Context, out io.Writer) {
	if len(r.entries) == 0 {
		fmt.Fprintln(out, "scratchpad is empty")
		return
	}

	fs := source.NewFileSet()
	raws := make([]string, len(r.entries))
	for i, e := range r.entries {
		raws[i] = e.raw
	}
	host := strings.Join(raws, "\n") + "\n"
	id := fs.AddVirtual("repl", []byte(host))

	bag := diag.NewBag(r.max)
	env := elab.NewEnv(fs, diag.BagReporter{Bag: bag}, elab.Options{
		Timeout:          r.timeout,
		MaxDiagnostics:   r.max,
		WarningsAsErrors: r.wae,
	})

	off := uint32(0)
	for _, e := range r.entries {
		n := uint32(len(e.raw))
		span := source.Span{File: id, Start: off, End: off + n}
		off += n + 1
		if e.decl == nil {
			if err := env.PushCommand(e.raw, span); err != nil {
				fmt.Fprintf(os.Stderr, "push failed: %v\n", err)
				return
			}
			continue
		}
		if err := elab.Elaborate(env, boundaryNode(*e.decl, span)); err != nil {
			fmt.Fprintf(os.Stderr, "boundary replay failed: %v\n", err)
			return
		}
	}

	buf := elab.BufferOf(env)
	if buf.EndOffset() > 0 {
		if err := r.ensureTool(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "tool unavailable: %v\n", err)
			return
		}
		diags, err := r.session.Collect(ctx, buf.Text(), r.timeout)
		if err != nil && !errors.Is(err, lsp.ErrCollectTimeout) {
			fmt.Fprintf(os.Stderr, "round failed: %v\n", err)
			return
		}
		if errors.Is(err, lsp.ErrCollectTimeout) {
			fmt.Fprintln(os.Stderr, "tool did not settle; findings may be incomplete")
		}

		mapper := &remap.Mapper{
			Text:             buf.Text(),
			Map:              buf.Map(),
			HostFile:         id,
			WarningsAsErrors: r.wae,
		}
		mapper.Remap(diags, diag.BagReporter{Bag: bag})
	}

	if bag.Len() == 0 {
		fmt.Fprintln(out, "clean")
		return
	}
	diagfmt.Pretty(out, bag, fs, diagfmt.PrettyOpts{Color: r.color, Context: 1})
}

func (r *replScratchpad) show(out io.Writer) {
	if len(r.entries) == 0 {
		fmt.Fprintln(out, "scratchpad is empty")
		return
	}
	for i, e := range r.entries {
		fmt.Fprintf(out, "%3d  %s\n", i+1, e.raw)
	}
}

// replHistoryPath picks the history location under the user cache dir.
// Empty string disables history.
func replHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "graft")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}
