package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestGetDefaults(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	if Get().Version == "" {
		t.Error("Version should have a default value")
	}
	Version = "   "
	if got := Get().Version; got != "dev" {
		t.Errorf("blank Version = %q, want dev", got)
	}
}

func TestGetCanBeOverridden(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	}()

	// simulates -ldflags overrides
	Version = "1.2.3"
	GitCommit = " abc123def456\n"
	BuildDate = "2024-01-15T10:30:00Z"

	got := Get()
	if got.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", got.Version, "1.2.3")
	}
	if got.GitCommit != "abc123def456" {
		t.Errorf("GitCommit = %q, want trimmed hash", got.GitCommit)
	}
	if got.BuildDate != "2024-01-15T10:30:00Z" {
		t.Errorf("BuildDate = %q", got.BuildDate)
	}
}

func TestColored(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	tests := []struct{ in, want string }{
		{"1.2.3", "1.2.3"},
		{"0.1.0-dev", "0.1.0-dev"},
		{"dev", "dev"},
		{"1.2", "1.2"},
	}
	for _, tt := range tests {
		if got := Colored(tt.in); got != tt.want {
			t.Errorf("Colored(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	color.NoColor = false
	if got := Colored("1.2.3"); got == "1.2.3" {
		t.Errorf("Colored should add escapes when color is enabled")
	}
}
