package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"graft/internal/diag"
	"graft/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes.
// Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	pal := newPalette(opts.Color)
	for _, d := range bag.Items() {
		writeDiagnostic(w, d, fs, opts, pal)
	}
}

func writeDiagnostic(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, pal palette) {
	head := fmt.Sprintf("%s %s: %s", pal.severity(d.Severity), pal.code.Sprint(d.Code.ID()), d.Message)

	loc, ok := locate(fs, d.Primary)
	if !ok {
		// Находка без привязки к файлу (ошибки чтения дампа и т.п.).
		fmt.Fprintln(w, head)
	} else {
		path := formatPath(loc.file.Path, opts.PathMode, opts.BaseDir)
		fmt.Fprintf(w, "%s:%d:%d: %s\n", path, loc.start.Line, loc.start.Col, head)
		writeSnippet(w, loc, opts, pal)
	}

	if !opts.ShowNotes {
		return
	}
	for _, note := range d.Notes {
		nloc, nok := locate(fs, note.Span)
		if !nok {
			fmt.Fprintf(w, "  note: %s\n", note.Msg)
			continue
		}
		npath := formatPath(nloc.file.Path, opts.PathMode, opts.BaseDir)
		fmt.Fprintf(w, "  note: %s:%d:%d: %s\n", npath, nloc.start.Line, nloc.start.Col, note.Msg)
	}
}

// writeSnippet prints source lines around the finding with a ^~~~ marker
// under the start line of the span.
func writeSnippet(w io.Writer, loc location, opts PrettyOpts, pal palette) {
	ctx := int(opts.Context)
	if ctx < 0 || len(loc.file.Content) == 0 {
		return
	}

	lineCount := len(loc.file.LineIdx) + 1
	first := max(int(loc.start.Line)-ctx, 1)
	last := min(int(loc.start.Line)+ctx, lineCount)

	for ln := first; ln <= last; ln++ {
		text := expandTabs(loc.file.GetLine(uint32(ln)))
		if ln != int(loc.start.Line) {
			if opts.Width > 0 {
				text = runewidth.Truncate(text, int(opts.Width), "…")
			}
			fmt.Fprintf(w, "%4d | %s\n", ln, text)
			continue
		}
		// Строку с находкой не обрезаем, иначе разъедется подчёркивание.
		fmt.Fprintf(w, "%4d | %s\n", ln, text)
		writeMarker(w, loc, pal)
	}
}

func writeMarker(w io.Writer, loc location, pal palette) {
	raw := loc.file.GetLine(loc.start.Line)
	colStart := min(int(loc.start.Col)-1, len(raw))
	colEnd := len(raw)
	if loc.end.Line == loc.start.Line {
		colEnd = min(int(loc.end.Col)-1, len(raw))
	}
	colEnd = max(colEnd, colStart)

	pad := runewidth.StringWidth(expandTabs(raw[:colStart]))
	// Пустой span всё равно получает каретку.
	width := max(runewidth.StringWidth(expandTabs(raw[colStart:colEnd])), 1)

	marker := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, "     | %s%s\n", strings.Repeat(" ", pad), pal.marker.Sprint(marker))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

type location struct {
	file  *source.File
	start source.LineCol
	end   source.LineCol
}

// locate resolves a span defensively: dumps may carry spans pointing
// outside the FileSet, and the zero span means "no position".
func locate(fs *source.FileSet, sp source.Span) (loc location, ok bool) {
	defer func() {
		if recover() != nil {
			loc = location{}
			ok = false
		}
	}()

	if fs == nil || sp.IsZero() {
		return location{}, false
	}
	f := fs.Get(sp.File)
	start, end := fs.Resolve(sp)
	return location{file: f, start: start, end: end}, true
}

type palette struct {
	err    *color.Color
	warn   *color.Color
	info   *color.Color
	code   *color.Color
	marker *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		code:   color.New(color.Bold),
		marker: color.New(color.FgGreen, color.Bold),
	}
	// Решение о цвете принимает вызывающая сторона (флаг/терминал),
	// глобальный color.NoColor здесь не играет.
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.marker} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return p.err.Sprint(sev.String())
	case diag.SevWarning:
		return p.warn.Sprint(sev.String())
	default:
		return p.info.Sprint(sev.String())
	}
}
