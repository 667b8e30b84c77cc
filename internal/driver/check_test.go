package driver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"graft/internal/ast"
	"graft/internal/diag"
	"graft/internal/elab"
	"graft/internal/lsp"
)

// fakeCollector plays back scripted rounds instead of talking to a tool.
type fakeCollector struct {
	rounds [][]lsp.Diagnostic
	errs   []error

	calls int
	texts []string
}

func (f *fakeCollector) Collect(_ context.Context, text string, _ time.Duration) ([]lsp.Diagnostic, error) {
	i := f.calls
	f.calls++
	f.texts = append(f.texts, text)
	var diags []lsp.Diagnostic
	if i < len(f.rounds) {
		diags = f.rounds[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return diags, err
}

func writeTestDump(t *testing.T, root *ast.Node) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main"+DumpExt)
	hostText := strings.Repeat("h", 64)
	if err := WriteDump(path, "src/main.host", hostText, root); err != nil {
		t.Fatalf("WriteDump: %v", err)
	}
	return path
}

func testOpts(col Collector) CheckOptions {
	return CheckOptions{Elab: elab.DefaultOptions(), Collector: col}
}

func countCode(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func findCode(bag *diag.Bag, code diag.Code) (diag.Diagnostic, bool) {
	for _, d := range bag.Items() {
		if d.Code == code {
			return d, true
		}
	}
	return diag.Diagnostic{}, false
}

func toolRange(startLine, startChar, endLine, endChar int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: startLine, Character: startChar},
		End:   lsp.Position{Line: endLine, Character: endChar},
	}
}

func TestCheckElaboratesSections(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Atom("host-only text", span(0, 21, 35)),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	opts := testOpts(nil)
	opts.Elab.Diagnostics = false

	res, err := Check(context.Background(), writeTestDump(t, root), opts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Sections != 2 {
		t.Fatalf("Sections = %d, want 2", res.Sections)
	}
	if res.Rounds != 0 {
		t.Fatalf("Rounds = %d, want 0", res.Rounds)
	}
	if got, want := res.Shim.Text(), "int a;\nint b;\n"; got != want {
		t.Fatalf("shim text = %q, want %q", got, want)
	}
	if res.Bag.Len() != 0 {
		t.Fatalf("bag = %+v, want empty", res.Bag.Items())
	}
}

func TestCheckRunsRoundPerSection(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	fake := &fakeCollector{}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("collector calls = %d, want 2", fake.calls)
	}
	// Каждый раунд видит весь накопленный документ.
	wantTexts := []string{"int a;\n", "int a;\nint b;\n"}
	for i, want := range wantTexts {
		if fake.texts[i] != want {
			t.Fatalf("round %d text = %q, want %q", i+1, fake.texts[i], want)
		}
	}
	if res.Rounds != 2 {
		t.Fatalf("Rounds = %d, want 2", res.Rounds)
	}
}

// Одна секция из трёх команд, находка инструмента на второй: её span в
// итоге указывает на хостовую позицию этой команды.
func TestCheckRemapsFindingToHost(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 50),
			ast.Atom("int a;", span(0, 10, 16)),
			ast.Atom("flot b;", span(0, 25, 32)),
			ast.Atom("int c;", span(0, 40, 46)),
		),
	)
	fake := &fakeCollector{rounds: [][]lsp.Diagnostic{{
		{
			Range:    toolRange(1, 0, 1, 4),
			Severity: lsp.SeverityWarning,
			Message:  "unknown type name 'flot' (fix available)",
			Source:   "clang",
		},
	}}}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Bag.Len() != 1 {
		t.Fatalf("bag = %+v, want exactly one finding", res.Bag.Items())
	}
	d := res.Bag.Items()[0]
	if d.Code != diag.ToolDiagnostic {
		t.Fatalf("code = %d, want ToolDiagnostic", d.Code)
	}
	if d.Severity != diag.SevWarning {
		t.Fatalf("severity = %v, want SevWarning", d.Severity)
	}
	if d.Primary.File != res.HostFile || d.Primary.Start != 25 || d.Primary.End != 32 {
		t.Fatalf("primary = %+v, want host span [25,32)", d.Primary)
	}
	if d.Message != "unknown type name 'flot'" {
		t.Fatalf("message = %q", d.Message)
	}
}

func TestCheckWarningsAsErrors(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("flot a;", span(0, 10, 17))),
	)
	fake := &fakeCollector{rounds: [][]lsp.Diagnostic{{
		{Range: toolRange(0, 0, 0, 4), Severity: lsp.SeverityWarning, Message: "w"},
	}}}
	opts := testOpts(fake)
	opts.Elab.WarningsAsErrors = true

	res, err := Check(context.Background(), writeTestDump(t, root), opts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	d, ok := findCode(res.Bag, diag.ToolDiagnostic)
	if !ok {
		t.Fatalf("no tool finding in bag: %+v", res.Bag.Items())
	}
	if d.Severity != diag.SevError {
		t.Fatalf("severity = %v, want SevError", d.Severity)
	}
	if !res.Bag.HasErrors() {
		t.Fatal("bag reports no errors")
	}
}

func TestCheckTimeoutKeepsChecking(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	// Первый раунд упирается в таймаут, но частичную находку отдаёт.
	fake := &fakeCollector{
		rounds: [][]lsp.Diagnostic{{
			{Range: toolRange(0, 0, 0, 3), Severity: lsp.SeverityError, Message: "partial"},
		}},
		errs: []error{lsp.ErrCollectTimeout},
	}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("collector calls = %d, want 2 (timeout must not stop rounds)", fake.calls)
	}
	if d, ok := findCode(res.Bag, diag.ToolTimeout); !ok || d.Severity != diag.SevError {
		t.Fatalf("want a ToolTimeout error, bag = %+v", res.Bag.Items())
	}
	if d, ok := findCode(res.Bag, diag.ToolDiagnostic); !ok || d.Message != "partial" {
		t.Fatalf("partial findings must survive a timeout, bag = %+v", res.Bag.Items())
	}
}

func TestCheckToolDeathStopsRounds(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	fake := &fakeCollector{errs: []error{lsp.ErrToolExited}}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("collector calls = %d, want 1 (dead tool must not be asked again)", fake.calls)
	}
	if d, ok := findCode(res.Bag, diag.ToolCrashed); !ok || d.Severity != diag.SevWarning {
		t.Fatalf("want a ToolCrashed warning, bag = %+v", res.Bag.Items())
	}
	// Секции элаборированы несмотря на смерть инструмента.
	if got, want := res.Shim.Text(), "int a;\nint b;\n"; got != want {
		t.Fatalf("shim text = %q, want %q", got, want)
	}
}

func TestCheckEmptySectionSkipsRound(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55)),
	)
	fake := &fakeCollector{}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("collector calls = %d, want 1 (empty section runs no round)", fake.calls)
	}
	d, ok := findCode(res.Bag, diag.ShimEmptySection)
	if !ok || d.Severity != diag.SevInfo {
		t.Fatalf("want a ShimEmptySection info, bag = %+v", res.Bag.Items())
	}
	if d.Primary.Start != 40 || d.Primary.End != 55 {
		t.Fatalf("empty-section span = %+v, want [40,55)", d.Primary)
	}
}

func TestCheckDropsStaleFindings(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	// Во втором раунде инструмент повторяет находку из первого раунда
	// (строка 0) вместе с новой (строка 1).
	fake := &fakeCollector{rounds: [][]lsp.Diagnostic{
		nil,
		{
			{Range: toolRange(0, 0, 0, 6), Severity: lsp.SeverityError, Message: "old news"},
			{Range: toolRange(1, 0, 1, 6), Severity: lsp.SeverityError, Message: "fresh"},
		},
	}}

	res, err := Check(context.Background(), writeTestDump(t, root), testOpts(fake))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if n := countCode(res.Bag, diag.ToolDiagnostic); n != 1 {
		t.Fatalf("tool findings = %d, want 1 (stale one dropped), bag = %+v", n, res.Bag.Items())
	}
	d, _ := findCode(res.Bag, diag.ToolDiagnostic)
	if d.Message != "fresh" || d.Primary.Start != 45 {
		t.Fatalf("kept the wrong finding: %+v", d)
	}
}

func TestCheckBoundaryInSection(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 55),
			ast.Group(ast.KindBoundary, span(0, 10, 50),
				ast.Atom("db.Conn", span(0, 15, 22)),
				ast.Group(ast.KindGroup, span(0, 23, 49),
					ast.Atom("finalizer", span(0, 24, 33)),
					ast.Atom("conn_free", span(0, 34, 43)),
					ast.Atom("foreach", span(0, 44, 46)),
					ast.Atom("conn_mark", span(0, 47, 49)),
				),
			),
		),
	)
	opts := testOpts(nil)
	opts.Elab.Diagnostics = false

	res, err := Check(context.Background(), writeTestDump(t, root), opts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Bag.Len() != 0 {
		t.Fatalf("bag = %+v, want empty", res.Bag.Items())
	}
	text := res.Shim.Text()
	for _, want := range []string{
		"_graft_wrap_db_dConn",
		"_graft_unwrap_db_dConn",
		"graft_register_extern_class(conn_free, conn_mark)",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("shim text missing %q:\n%s", want, text)
		}
	}
}

func TestCheckDumpErrorsLandInBag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken"+DumpExt)
	if err := os.WriteFile(path, []byte("\x00not a dump"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := Check(context.Background(), path, testOpts(&fakeCollector{}))
	if err != nil {
		t.Fatalf("Check returned infrastructure error: %v", err)
	}
	if _, ok := findCode(res.Bag, diag.IODumpDecodeError); !ok {
		t.Fatalf("want IODumpDecodeError in bag, got %+v", res.Bag.Items())
	}
	if res.Sections != 0 || res.Rounds != 0 {
		t.Fatalf("sections/rounds = %d/%d, want 0/0", res.Sections, res.Rounds)
	}
}

func TestCheckSpawnFailureDegrades(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	opts := testOpts(nil)
	opts.Tool.Path = filepath.Join(t.TempDir(), "no-such-tool")

	res, err := Check(context.Background(), writeTestDump(t, root), opts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if n := countCode(res.Bag, diag.ToolSpawnFailed); n != 1 {
		t.Fatalf("ToolSpawnFailed count = %d, want exactly 1", n)
	}
	// Shim всё равно построен полностью.
	if got, want := res.Shim.Text(), "int a;\nint b;\n"; got != want {
		t.Fatalf("shim text = %q, want %q", got, want)
	}
}

func TestCheckRoundCache(t *testing.T) {
	cache := testCache(t)
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("flot a;", span(0, 10, 17))),
	)
	path := writeTestDump(t, root)

	finding := lsp.Diagnostic{
		Range: toolRange(0, 0, 0, 4), Severity: lsp.SeverityError, Message: "bad type",
	}
	first := &fakeCollector{rounds: [][]lsp.Diagnostic{{finding}}}
	opts := testOpts(first)
	opts.Cache = cache

	res1, err := Check(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("first Check: %v", err)
	}
	if first.calls != 1 {
		t.Fatalf("first collector calls = %d, want 1", first.calls)
	}

	second := &fakeCollector{}
	opts.Collector = second
	res2, err := Check(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("second collector calls = %d, want 0 (cache hit)", second.calls)
	}

	d1, ok1 := findCode(res1.Bag, diag.ToolDiagnostic)
	d2, ok2 := findCode(res2.Bag, diag.ToolDiagnostic)
	if !ok1 || !ok2 {
		t.Fatalf("both runs must report the finding: %v / %v", ok1, ok2)
	}
	if d1.Message != d2.Message || d1.Primary != d2.Primary {
		t.Fatalf("cached round diverged: %+v vs %+v", d1, d2)
	}
}

func TestCheckTimings(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
	)
	opts := testOpts(nil)
	opts.Elab.Diagnostics = false
	opts.EnableTimings = true

	res, err := Check(context.Background(), writeTestDump(t, root), opts)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Timing == nil {
		t.Fatal("Timing = nil, want a report")
	}
	names := make(map[string]bool, len(res.Timing.Phases))
	for _, p := range res.Timing.Phases {
		names[p.Name] = true
	}
	for _, want := range []string{"load_dump", "elaborate", "shutdown"} {
		if !names[want] {
			t.Fatalf("missing phase %q in %+v", want, res.Timing.Phases)
		}
	}

	d, ok := findCode(res.Bag, diag.ObsTimings)
	if !ok {
		t.Fatalf("no timings diagnostic in bag: %+v", res.Bag.Items())
	}
	if len(d.Notes) != 1 {
		t.Fatalf("timings notes = %d, want 1", len(d.Notes))
	}
	var payload timingPayload
	if err := json.Unmarshal([]byte(d.Notes[0].Msg), &payload); err != nil {
		t.Fatalf("timings note is not JSON: %v", err)
	}
	if payload.Kind != "check" {
		t.Fatalf("payload kind = %q, want %q", payload.Kind, "check")
	}
}

func TestCheckPhaseObserver(t *testing.T) {
	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
		ast.Group(ast.KindSection, span(0, 40, 55),
			ast.Atom("int b;", span(0, 45, 51))),
	)
	opts := testOpts(&fakeCollector{})
	var got []string
	opts.PhaseObserver = func(ev PhaseEvent) {
		suffix := ">"
		if ev.Status == PhaseEnd {
			suffix = "<"
		}
		got = append(got, ev.Name+suffix)
	}

	if _, err := Check(context.Background(), writeTestDump(t, root), opts); err != nil {
		t.Fatalf("Check: %v", err)
	}
	// Раунды диагностики вложены в elaborate, по одному на секцию.
	want := []string{
		"load_dump>", "load_dump<",
		"elaborate>",
		"diagnose>", "diagnose<",
		"diagnose>", "diagnose<",
		"elaborate<",
		"shutdown>", "shutdown<",
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestCheckMany(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a", "b", "c"} {
		root := ast.Group(ast.KindGroup, span(0, 0, 60),
			ast.Group(ast.KindSection, span(0, 5, 20),
				ast.Atom("int x"+name+";", span(0, 10, 16+uint32(i)))),
		)
		path := filepath.Join(dir, name+DumpExt)
		if err := WriteDump(path, "src/"+name+".host", strings.Repeat("h", 64), root); err != nil {
			t.Fatalf("WriteDump(%s): %v", name, err)
		}
	}

	paths, err := ListDumps(dir)
	if err != nil {
		t.Fatalf("ListDumps: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("ListDumps = %v, want 3 entries", paths)
	}
	if !strings.HasSuffix(paths[0], "a"+DumpExt) {
		t.Fatalf("paths not sorted: %v", paths)
	}

	opts := testOpts(nil)
	opts.Elab.Diagnostics = false
	results, err := CheckMany(context.Background(), paths, opts, 2)
	if err != nil {
		t.Fatalf("CheckMany: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d is nil", i)
		}
		if res.Path != paths[i] {
			t.Fatalf("result %d path = %q, want %q (index order)", i, res.Path, paths[i])
		}
		if res.Sections != 1 {
			t.Fatalf("result %d sections = %d, want 1", i, res.Sections)
		}
	}
}

func TestCheckManyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := ast.Group(ast.KindGroup, span(0, 0, 60),
		ast.Group(ast.KindSection, span(0, 5, 20),
			ast.Atom("int a;", span(0, 10, 16))),
	)
	opts := testOpts(nil)
	opts.Elab.Diagnostics = false
	_, err := CheckMany(ctx, []string{writeTestDump(t, root)}, opts, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
