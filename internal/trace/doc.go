// Package trace provides a tracing subsystem for the graft driver.
//
// The trace package tracks check phases and the traffic between graft and
// the diagnostic tool subprocess, to help diagnose slow runs and hangs.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	graft check --trace=- --trace-level=phase dumps/
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for crash dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: Only crash dumps
//   - LevelPhase: Driver and check-phase boundaries
//   - LevelDetail: Tool lifecycle events
//   - LevelDebug: Everything including per-message wire traffic
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeDriver: Top-level CLI operations
//   - ScopePhase: Check phases (load_dump, elaborate, diagnose, shutdown)
//   - ScopeTool: Tool subprocess lifecycle (spawn, handshake, exit)
//   - ScopeWire: Individual protocol messages (most detailed)
//
// # Context Propagation
//
// Tracers are propagated through the check pipeline via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePhase, "elaborate", parentID)
//	defer span.End("")
package trace
