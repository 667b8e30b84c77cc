// Package remap translates diagnostics published by the external tool
// against the shim document into diagnostics positioned in host code.
package remap

import (
	"fmt"

	"fortio.org/safecast"

	"graft/internal/diag"
	"graft/internal/lsp"
	"graft/internal/shim"
	"graft/internal/source"
)

// Mapper carries the per-round context needed to attribute tool findings
// to host positions.
type Mapper struct {
	// Text is the shim document the tool analysed this round.
	Text string
	// Map attributes shim offsets to host spans.
	Map *shim.PositionMap
	// HostFile receives findings that map to nothing (sentinel origin):
	// они ложатся на начало файла, но не теряются.
	HostFile source.FileID
	// MinShimOffset drops findings that end strictly before this shim
	// offset: такие находки принадлежат прошлым раундам.
	MinShimOffset uint32
	// WarningsAsErrors upgrades tool warnings.
	WarningsAsErrors bool
}

// Remap emits one host diagnostic per tool finding through r.
func (m *Mapper) Remap(diags []lsp.Diagnostic, r diag.Reporter) {
	for _, d := range diags {
		m.remapOne(d, r)
	}
}

func (m *Mapper) remapOne(d lsp.Diagnostic, r diag.Reporter) {
	end, err := safecast.Conv[uint32](offsetForPosition(m.Text, d.Range.End))
	if err != nil {
		panic(fmt.Errorf("shim offset overflow: %w", err))
	}
	if end < m.MinShimOffset {
		return
	}

	msg := CleanMessage(d.Message)
	if msg == "" {
		// Сообщение целиком было про виртуальный документ
		msg = "external tool reported an issue here"
	}

	off, err := safecast.Conv[uint32](offsetForPosition(m.Text, d.Range.Start))
	if err != nil {
		panic(fmt.Errorf("shim offset overflow: %w", err))
	}
	primary := m.Map.ShimToHost(off)
	if primary.IsZero() {
		primary = source.Span{File: m.HostFile}
	}

	b := diag.NewReportBuilder(r, classifySeverity(d.Severity, m.WarningsAsErrors),
		diag.ToolDiagnostic, primary, msg)
	if code := d.CodeString(); code != "" {
		b.WithNote(primary, "tool code: "+code)
	}
	b.Emit()
}

// classifySeverity maps protocol severities onto ours. Unknown or absent
// severities read as errors so nothing slips by quietly.
func classifySeverity(toolSev int, warningsAsErrors bool) diag.Severity {
	switch toolSev {
	case lsp.SeverityError:
		return diag.SevError
	case lsp.SeverityWarning:
		if warningsAsErrors {
			return diag.SevError
		}
		return diag.SevWarning
	case lsp.SeverityInformation, lsp.SeverityHint:
		return diag.SevInfo
	default:
		return diag.SevError
	}
}
