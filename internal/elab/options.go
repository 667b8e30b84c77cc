package elab

import "time"

// DefaultTimeout ограничивает ожидание ответа внешнего инструмента
// на один раунд диагностики.
const DefaultTimeout = 1 * time.Second

// DefaultMaxDiagnostics bounds the per-environment diagnostics bag.
const DefaultMaxDiagnostics = 256

// Options controls elaboration behaviour for one environment.
type Options struct {
	// Diagnostics enables the external tool round after each section.
	Diagnostics bool
	// Timeout is how long one diagnostics round may wait for the tool
	// to settle before giving up.
	Timeout time.Duration
	// WarningsAsErrors upgrades remapped tool warnings to errors.
	WarningsAsErrors bool
	// MaxDiagnostics bounds how many diagnostics one environment keeps.
	MaxDiagnostics int
}

// DefaultOptions returns the options used when the project manifest
// does not override them.
func DefaultOptions() Options {
	return Options{
		Diagnostics:    true,
		Timeout:        DefaultTimeout,
		MaxDiagnostics: DefaultMaxDiagnostics,
	}
}
