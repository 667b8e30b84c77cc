// Package diag defines the core diagnostic model shared by all pipeline phases.
//
// # Purpose
//
//   - Provide deterministic, serialisable data structures that capture findings
//     produced by translation, boundary generation and external tool runs.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; for remapped tool findings this is the
//     tool's own (cleaned) message.
//   - Primary span – the canonical source.Span pointing to the issue in host
//     coordinates. Findings that could not be attributed to host code keep a
//     span inside the virtual shim document.
//   - Notes – optional secondary spans/messages for additional context.
//
// # Emitting diagnostics
//
// Phases should use a diag.Reporter to decouple emission from storage. The
// remapper, for example, constructs a ReportBuilder via NewReportBuilder (or
// the helper functions ReportError/ReportWarning/ReportInfo) and chains
// WithNote before calling Emit.
//
// When no additional metadata is needed, phases may call Reporter.Report(...)
// directly. For convenience, diag.BagReporter aggregates diagnostics into a
// Bag, which supports sorting, deduplication and merging; DedupReporter
// suppresses repeats across tool diagnostics rounds.
//
// Keep the data model deterministic: any new fields should avoid side effects,
// so the CLI and future tooling can safely serialise diagnostics for caching
// and testing.
package diag
