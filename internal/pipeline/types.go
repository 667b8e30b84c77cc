package pipeline

import "time"

// Stage describes a high-level phase of checking one elaboration dump.
type Stage string

const (
	// StageLoad is the dump decoding stage.
	StageLoad Stage = "load"
	// StageElaborate is the shim accumulation stage.
	StageElaborate Stage = "elaborate"
	// StageDiagnose is the external tool diagnostics stage.
	StageDiagnose Stage = "diagnose"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the dump is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the dump is currently being checked.
	StatusWorking Status = "working"
	// StatusDone indicates the dump is done.
	StatusDone Status = "done"
	// StatusError indicates the check encountered an infrastructure error.
	StatusError Status = "error"
)

// Event reports progress for one dump.
type Event struct {
	Dump    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Run emits events from worker
// goroutines, so implementations must tolerate concurrent calls.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations summed across dumps.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
