package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"graft/internal/diag"
	"graft/internal/diagfmt"
	"graft/internal/driver"
	"graft/internal/lsp"
	"graft/internal/pipeline"
	"graft/internal/project"
	"graft/internal/source"
	"graft/internal/version"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file.graft|directory>",
	Short: "Run foreign-code diagnostics over elaboration dumps",
	Long: `Elaborate one dump or every *.graft dump under a directory, run the
external tool over the accumulated foreign code and print the findings
mapped back onto host positions.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

// init registers CLI flags for the check command used by runCheck.
func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|short|json|sarif)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	checkCmd.Flags().Bool("no-diagnostics", false, "skip external tool rounds (elaborate only)")
	checkCmd.Flags().Bool("warnings-as-errors", false, "treat tool warnings as errors")
	checkCmd.Flags().String("tool", "", "diagnostics tool executable (overrides manifest)")
	checkCmd.Flags().StringArray("tool-arg", nil, "extra argument passed to the tool (repeatable)")
	checkCmd.Flags().Duration("timeout", 0, "per-round tool timeout (overrides manifest)")
	checkCmd.Flags().Bool("cache", false, "enable the persistent round cache")
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().String("ui", "auto", "progress interface for directories (auto|on|off)")
}

// runCheck executes the "check" command: it resolves the manifest and
// flags into check options, runs the pipeline over the requested dumps,
// renders results in the chosen format and exits non-zero when any
// diagnostics contain errors.
func runCheck(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic(cmd)

	target := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	noDiagnostics, err := cmd.Flags().GetBool("no-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get no-diagnostics flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	toolPath, err := cmd.Flags().GetString("tool")
	if err != nil {
		return fmt.Errorf("failed to get tool flag: %w", err)
	}
	toolArgs, err := cmd.Flags().GetStringArray("tool-arg")
	if err != nil {
		return fmt.Errorf("failed to get tool-arg flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}
	useCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return fmt.Errorf("failed to get cache flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))

	if noDiagnostics && warningsAsErrors {
		return fmt.Errorf("no-diagnostics and warnings-as-errors flags cannot be used together")
	}
	switch format {
	case "pretty", "short", "json", "sarif":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	st, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer traceCleanup()
	profCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profCleanup()
	debugLog, logCleanup, err := setupDebugLogging(cmd)
	if err != nil {
		return err
	}
	defer logCleanup()

	// Манифест ищем от проверяемого пути, а не от cwd.
	manifestBase := target
	if !st.IsDir() {
		manifestBase = filepath.Dir(target)
	}
	manifest, found, err := project.LoadFromDir(manifestBase)
	if err != nil {
		var merr *project.ManifestError
		if errors.As(err, &merr) {
			renderManifestError(os.Stdout, format, merr, useColor, withNotes)
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return fmt.Errorf("") // Silent error - diagnostics already printed
		}
		return err
	}
	if !found {
		manifest = project.Default()
	}

	opts := driver.CheckOptions{
		Elab: manifest.ElabOptions(),
		Tool: lsp.Config{
			Path:       manifest.Tool.Path,
			Args:       manifest.Tool.Args,
			RootDir:    manifest.Root,
			LanguageID: manifest.Tool.Language,
		},
		EnableTimings: showTimings,
		Log:           debugLog,
	}
	if maxDiagnostics > 0 {
		opts.Elab.MaxDiagnostics = maxDiagnostics
	}
	if noDiagnostics {
		opts.Elab.Diagnostics = false
	}
	if warningsAsErrors {
		opts.Elab.WarningsAsErrors = true
	}
	if toolPath != "" {
		opts.Tool.Path = toolPath
	}
	if len(toolArgs) > 0 {
		opts.Tool.Args = append(append([]string{}, opts.Tool.Args...), toolArgs...)
	}
	if timeout > 0 {
		opts.Elab.Timeout = timeout
	}
	if useCache {
		cache, cerr := driver.OpenRoundCache("graft")
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "round cache unavailable: %v\n", cerr)
		} else {
			opts.Cache = cache
		}
	}

	paths := []string{target}
	if st.IsDir() {
		paths, err = driver.ListDumps(target)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			if !quiet {
				fmt.Fprintf(os.Stdout, "no %s dumps under %s\n", driver.DumpExt, target)
			}
			return nil
		}
	}

	req := &pipeline.Request{
		Paths:   paths,
		Options: opts,
		Jobs:    jobs,
	}
	useTUI := shouldUseTUI(uiModeValue) && len(paths) > 1 && (format == "pretty" || format == "short")

	var pres pipeline.Result
	if useTUI {
		pres, err = runPipelineWithUI(cmd.Context(), "graft check", req)
	} else {
		pres, err = pipeline.Run(cmd.Context(), req)
	}
	if err != nil {
		if showTimings && !quiet {
			printStageTimings(os.Stdout, pres.Timings)
		}
		return err
	}

	renderOpts := checkRenderOptions{
		Format:    format,
		Color:     useColor,
		WithNotes: withNotes,
		FullPath:  fullPath,
		Headers:   len(paths) > 1 && !quiet,
	}
	if err := renderCheckResults(os.Stdout, pres.Results, renderOpts); err != nil {
		return err
	}

	if showTimings && !quiet {
		printStageTimings(os.Stdout, pres.Timings)
		printPhaseReports(os.Stdout, pres.Results)
	}
	if !quiet && format == "pretty" {
		printCheckSummary(os.Stdout, pres.Results)
	}

	if pres.HasErrors() {
		// Suppress cobra usage output on diagnostic errors
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("") // Silent error - diagnostics already printed
	}
	return nil
}

// checkRenderOptions carries the resolved output settings for one run.
type checkRenderOptions struct {
	Format    string
	Color     bool
	WithNotes bool
	FullPath  bool
	Headers   bool
}

// renderCheckResults prints every non-nil result in the requested
// format. Each dump carries its own FileSet, so rendering is per-dump.
func renderCheckResults(out io.Writer, results []*driver.Result, opts checkRenderOptions) error {
	pathMode := diagfmt.PathModeAuto
	if opts.FullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	prettyOpts := diagfmt.PrettyOpts{
		Color:     opts.Color,
		Context:   2,
		PathMode:  pathMode,
		ShowNotes: opts.WithNotes,
	}
	jsonOpts := diagfmt.JSONOpts{
		IncludePositions: true,
		PathMode:         pathMode,
		IncludeNotes:     opts.WithNotes,
	}
	meta := diagfmt.SarifRunMeta{
		ToolName:    "graft",
		ToolVersion: version.Version,
	}

	switch opts.Format {
	case "pretty":
		first := true
		for _, r := range results {
			if r == nil {
				continue
			}
			if opts.Headers {
				if !first {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "== %s ==\n", r.Path)
			}
			first = false
			diagfmt.Pretty(out, r.Bag, r.FileSet, prettyOpts)
		}
	case "short":
		for _, r := range results {
			if r == nil {
				continue
			}
			output := diag.FormatShortDiagnostics(r.Bag.Items(), r.FileSet, opts.WithNotes)
			if output != "" {
				fmt.Fprintln(out, output)
			}
		}
	case "json":
		combined := make(map[string]diagfmt.DiagnosticsOutput, len(results))
		for _, r := range results {
			if r == nil {
				continue
			}
			combined[r.Path] = diagfmt.BuildDiagnosticsOutput(r.Bag, r.FileSet, jsonOpts)
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(combined); err != nil {
			return fmt.Errorf("failed to encode diagnostics output: %w", err)
		}
	case "sarif":
		for _, r := range results {
			if r == nil {
				continue
			}
			if err := diagfmt.Sarif(out, r.Bag, r.FileSet, meta); err != nil {
				return fmt.Errorf("failed to format sarif: %w", err)
			}
		}
	}
	return nil
}

// renderManifestError prints a broken-manifest finding through the same
// formatters as tool findings, so CI parses one shape.
func renderManifestError(out io.Writer, format string, merr *project.ManifestError, useColor, withNotes bool) {
	fs := source.NewFileSet()
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(merr.Code, source.Span{}, merr.Error()))

	switch format {
	case "short":
		if output := diag.FormatShortDiagnostics(bag.Items(), fs, withNotes); output != "" {
			fmt.Fprintln(out, output)
		}
	case "json":
		_ = diagfmt.JSON(out, bag, fs, diagfmt.JSONOpts{IncludeNotes: withNotes})
	case "sarif":
		_ = diagfmt.Sarif(out, bag, fs, diagfmt.SarifRunMeta{ToolName: "graft", ToolVersion: version.Version})
	default:
		diagfmt.Pretty(out, bag, fs, diagfmt.PrettyOpts{Color: useColor, Context: -1})
	}
}

// printCheckSummary prints the one-line verdict for pretty output.
func printCheckSummary(out io.Writer, results []*driver.Result) {
	dumps, errs, warns := 0, 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		dumps++
		for _, d := range r.Bag.Items() {
			switch d.Severity {
			case diag.SevError:
				errs++
			case diag.SevWarning:
				warns++
			}
		}
	}
	switch {
	case errs == 0 && warns == 0:
		fmt.Fprintf(out, "checked %d dump(s): clean\n", dumps)
	default:
		fmt.Fprintf(out, "checked %d dump(s): %d error(s), %d warning(s)\n", dumps, errs, warns)
	}
}
