package version

import (
	"strings"
	"testing"
)

func TestVersionDefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	// GitCommit, GitMessage and BuildDate can be empty (optional).
	_ = GitCommit
	_ = GitMessage
	_ = BuildDate
}

func TestVersionCanBeOverridden(t *testing.T) {
	origVersion := Version
	origGitCommit := GitCommit
	origGitMessage := GitMessage
	origBuildDate := BuildDate
	defer func() {
		Version = origVersion
		GitCommit = origGitCommit
		GitMessage = origGitMessage
		BuildDate = origBuildDate
	}()

	// Simulating build-time ldflags.
	Version = "1.2.3"
	GitCommit = "abc123def456"
	GitMessage = "release build"
	BuildDate = "2026-01-15T10:30:00Z"

	if Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", Version, "1.2.3")
	}
	if GitCommit != "abc123def456" {
		t.Errorf("GitCommit = %q, want %q", GitCommit, "abc123def456")
	}
	if GitMessage != "release build" {
		t.Errorf("GitMessage = %q, want %q", GitMessage, "release build")
	}
	if BuildDate != "2026-01-15T10:30:00Z" {
		t.Errorf("BuildDate = %q, want %q", BuildDate, "2026-01-15T10:30:00Z")
	}
}

func TestColoredNonSemverPassthrough(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "nightly"
	if got := Colored(); got != "nightly" {
		t.Errorf("Colored() = %q, want %q", got, "nightly")
	}
}

func TestColoredKeepsEveryComponent(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	// Escape sequences depend on the terminal, so only the visible
	// text is pinned here.
	Version = "1.2.3-rc1"
	got := Colored()
	for _, part := range []string{"1", "2", "3-rc1"} {
		if !strings.Contains(got, part) {
			t.Errorf("Colored() = %q, missing component %q", got, part)
		}
	}
	if strings.Count(got, ".") < 2 {
		t.Errorf("Colored() = %q, want dot separators kept", got)
	}
}
