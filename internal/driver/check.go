package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"graft/internal/ast"
	_ "graft/internal/boundary" // регистрирует транслятор граничных объявлений
	"graft/internal/diag"
	"graft/internal/elab"
	"graft/internal/lsp"
	"graft/internal/observ"
	"graft/internal/remap"
	"graft/internal/shim"
	"graft/internal/source"
	"graft/internal/trace"
)

// Collector runs one diagnostics round over the accumulated shim
// document. *lsp.Session is the production implementation.
type Collector interface {
	Collect(ctx context.Context, text string, timeout time.Duration) ([]lsp.Diagnostic, error)
}

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a phase boundary inside one Check call. Phase
// names are load_dump, elaborate, shutdown, плюс вложенный diagnose на
// каждый раунд диагностики.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events on the goroutine running Check.
type PhaseObserver func(PhaseEvent)

type phaseSpan struct {
	name  string
	idx   int
	start time.Time
	tr    *trace.Span
}

// CheckOptions собирается из graft.toml и флагов CLI.
type CheckOptions struct {
	Elab elab.Options
	Tool lsp.Config

	// Collector replaces the spawned tool when set (tests, custom hosts).
	Collector Collector

	// Host frontend hooks; nil is fine for plain dumps.
	Resolver elab.NameResolver
	Macros   elab.MacroExpander

	// Cache short-circuits diagnostics rounds whose shim text was
	// already analysed by the same tool.
	Cache *RoundCache

	// PhaseObserver drives progress UIs; независим от EnableTimings.
	PhaseObserver PhaseObserver

	EnableTimings bool
	Log           *zap.Logger
}

// Result of checking one elaboration dump.
type Result struct {
	Path     string
	FileSet  *source.FileSet
	HostFile source.FileID
	Bag      *diag.Bag
	Shim     *shim.Buffer
	Sections int
	Rounds   int
	Timing   *observ.Report
}

// Check elaborates one dump: accumulates foreign code from its sections,
// runs a diagnostics round after each section, and remaps tool findings
// onto host positions. Tool failures degrade to warnings; only
// infrastructure failures return an error.
func Check(ctx context.Context, path string, opts CheckOptions) (*Result, error) {
	if opts.Elab.MaxDiagnostics <= 0 {
		opts.Elab.MaxDiagnostics = elab.DefaultMaxDiagnostics
	}
	if opts.Elab.Timeout <= 0 {
		opts.Elab.Timeout = elab.DefaultTimeout
	}

	var timer *observ.Timer
	if opts.EnableTimings {
		timer = observ.NewTimer()
	}
	tracer := trace.FromContext(ctx)
	checkSpan := trace.Begin(tracer, trace.ScopeDriver, "check", 0).WithExtra("dump", path)
	defer checkSpan.End("")

	observe := opts.PhaseObserver
	begin := func(name string) phaseSpan {
		if observe != nil {
			observe(PhaseEvent{Name: name, Status: PhaseStart})
		}
		ps := phaseSpan{name: name, idx: -1, start: time.Now()}
		if timer != nil {
			ps.idx = timer.Begin(name)
		}
		ps.tr = trace.Begin(tracer, trace.ScopePhase, name, checkSpan.ID())
		return ps
	}
	end := func(ps phaseSpan, note string) {
		if timer != nil && ps.idx >= 0 {
			timer.End(ps.idx, note)
		}
		ps.tr.End(note)
		if observe != nil {
			observe(PhaseEvent{Name: ps.name, Status: PhaseEnd, Elapsed: time.Since(ps.start)})
		}
	}

	bag := diag.NewBag(opts.Elab.MaxDiagnostics)
	fs := source.NewFileSet()
	res := &Result{Path: path, FileSet: fs, Bag: bag}

	loadPh := begin("load_dump")
	root, hostID, err := LoadDump(fs, path)
	end(loadPh, "")
	if err != nil {
		var derr *DumpError
		if !errors.As(err, &derr) {
			return nil, err
		}
		diag.ReportError(diag.BagReporter{Bag: bag}, derr.Code, source.Span{}, derr.Msg).Emit()
		bag.Sort()
		return res, nil
	}
	res.HostFile = hostID

	env := elab.NewEnv(fs, diag.NewDedupReporter(diag.BagReporter{Bag: bag}), opts.Elab)
	env.Resolver = opts.Resolver
	env.Macros = opts.Macros
	if opts.Log != nil {
		env.WithLogger(opts.Log)
	}

	c := &checker{ctx: ctx, opts: &opts, res: res, tracer: tracer}
	if opts.Elab.Diagnostics {
		env.Diagnose = c.diagnose
	}
	defer c.kill()

	elabPh := begin("elaborate")
	c.phaseID = elabPh.tr.ID()
	var walkErr error
	root.Walk(func(n *ast.Node) bool {
		if walkErr != nil {
			return false
		}
		if n.Kind != ast.KindSection {
			return true
		}
		res.Sections++
		if err := elab.Section(env, n); err != nil {
			walkErr = err
		}
		// Команды секции уже обработаны, вглубь не спускаемся.
		return false
	})
	res.Shim = elab.BufferOf(env)
	elabNote := ""
	if timer != nil {
		elabNote = fmt.Sprintf("sections=%d rounds=%d diags=%d", res.Sections, res.Rounds, bag.Len())
	}
	end(elabPh, elabNote)
	if walkErr != nil {
		if !errors.Is(walkErr, shim.ErrOrderingViolation) {
			return nil, walkErr
		}
		// Испорченный дамп, а не сбой инфраструктуры: дальше буферу
		// верить нельзя, но результат с диагностикой вернуть можно.
		diag.ReportError(diag.BagReporter{Bag: bag}, diag.ShimOrderingViolation, source.Span{File: hostID},
			fmt.Sprintf("inconsistent elaboration dump: %v", walkErr)).Emit()
	}

	downPh := begin("shutdown")
	c.shutdown(env)
	end(downPh, "")

	bag.Sort()
	if timer != nil {
		report := timer.Report()
		res.Timing = &report
		appendTimingDiagnostic(bag, timingPayload{
			Kind:    "check",
			Path:    path,
			TotalMS: report.TotalMS,
			Phases:  report.Phases,
		})
	}
	return res, nil
}

// checker carries the per-Check diagnostics state: the running tool,
// the shim offset already reported, and the failure latch that stops
// further rounds once the tool is gone.
type checker struct {
	ctx  context.Context
	opts *CheckOptions
	res  *Result

	tracer  trace.Tracer
	phaseID uint64

	tool   *lsp.Tool
	col    Collector
	cutoff uint32
	failed bool
	closed bool
}

func (c *checker) diagnose(env *elab.Env, section source.Span) {
	if c.failed {
		return
	}
	buf := elab.BufferOf(env)
	if buf.EndOffset() == c.cutoff {
		diag.ReportInfo(env.Reporter, diag.ShimEmptySection, section,
			"section added no foreign code; diagnostics round skipped").Emit()
		return
	}
	if obs := c.opts.PhaseObserver; obs != nil {
		obs(PhaseEvent{Name: "diagnose", Status: PhaseStart})
		start := time.Now()
		defer func() { obs(PhaseEvent{Name: "diagnose", Status: PhaseEnd, Elapsed: time.Since(start)}) }()
	}
	sp := trace.Begin(c.tracer, trace.ScopePhase, "diagnose", c.phaseID)
	defer sp.End("")
	text := buf.Text()

	if c.opts.Cache != nil {
		key := RoundKey(text, c.opts.Tool)
		if cached, ok, err := c.opts.Cache.Get(key); err != nil {
			env.Log.Debug("round cache read failed", zap.Error(err))
		} else if ok {
			env.Log.Debug("round cache hit", zap.Int("diags", len(cached)))
			c.remap(env, buf, text, section, cached)
			return
		}
	}

	col := c.collector(env)
	if col == nil {
		return
	}
	diags, err := col.Collect(c.ctx, text, c.opts.Elab.Timeout)
	c.res.Rounds++
	switch {
	case err == nil:
		if c.opts.Cache != nil {
			if perr := c.opts.Cache.Put(RoundKey(text, c.opts.Tool), diags); perr != nil {
				env.Log.Debug("round cache write failed", zap.Error(perr))
			}
		}
	case errors.Is(err, lsp.ErrCollectTimeout):
		// Инструмент жив, просто не успел; частичные находки сохраняем.
		diag.ReportError(env.Reporter, diag.ToolTimeout, section,
			fmt.Sprintf("external tool did not finish analysis within %s", c.opts.Elab.Timeout)).Emit()
	case errors.Is(err, lsp.ErrToolExited):
		c.failed = true
		diag.ReportWarning(env.Reporter, diag.ToolCrashed, section,
			"external tool exited during the diagnostics round; remaining rounds are skipped").Emit()
	default:
		c.failed = true
		diag.ReportWarning(env.Reporter, diag.ToolCrashed, section,
			fmt.Sprintf("diagnostics round failed: %v; remaining rounds are skipped", err)).Emit()
	}
	c.remap(env, buf, text, section, diags)
}

func (c *checker) remap(env *elab.Env, buf *shim.Buffer, text string, section source.Span, diags []lsp.Diagnostic) {
	m := remap.Mapper{
		Text:             text,
		Map:              buf.Map(),
		HostFile:         section.File,
		MinShimOffset:    c.cutoff,
		WarningsAsErrors: c.opts.Elab.WarningsAsErrors,
	}
	m.Remap(diags, env.Reporter)
	c.cutoff = buf.EndOffset()
}

// collector returns the active collector, spawning the external tool on
// first use. A spawn failure is reported once and disables diagnostics
// for the rest of the check.
func (c *checker) collector(env *elab.Env) Collector {
	if c.col != nil {
		return c.col
	}
	if c.opts.Collector != nil {
		c.col = c.opts.Collector
		return c.col
	}
	cfg := c.opts.Tool
	if cfg.Tracer == nil {
		cfg.Tracer = c.tracer
	}
	name := cfg.Path
	if name == "" {
		name = "clangd"
	}
	spawn := trace.Begin(c.tracer, trace.ScopeTool, "tool:spawn", c.phaseID)
	tool, err := lsp.Start(c.ctx, cfg)
	if err != nil {
		spawn.End("failed")
		c.failed = true
		diag.ReportWarning(env.Reporter, diag.ToolSpawnFailed, source.Span{File: c.res.HostFile},
			fmt.Sprintf("cannot start %q: %v; foreign diagnostics are unavailable", name, err)).Emit()
		return nil
	}
	spawn.End(name)
	c.tool = tool
	c.col = lsp.NewSession(tool)
	return c.col
}

// shutdown stops the spawned tool politely and reports protocol noise.
// Идемпотентен: повторный вызов ничего не делает.
func (c *checker) shutdown(env *elab.Env) {
	if c.closed || c.tool == nil {
		c.closed = true
		return
	}
	c.closed = true
	if n := c.tool.MalformedCount(); n > 0 {
		diag.ReportWarning(env.Reporter, diag.ToolMalformedMessage, source.Span{File: c.res.HostFile},
			fmt.Sprintf("external tool sent %d malformed protocol messages", n)).Emit()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.tool.Shutdown(ctx); err != nil {
		diag.ReportWarning(env.Reporter, diag.ToolShutdownFailed, source.Span{File: c.res.HostFile},
			fmt.Sprintf("external tool shutdown: %v", err)).Emit()
	}
}

// kill is the hard-stop path for early returns; после обычного shutdown
// ничего не делает.
func (c *checker) kill() {
	if c.closed || c.tool == nil {
		return
	}
	c.closed = true
	c.tool.Kill()
}
