package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"iocheck/internal/testkit"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"60", time.Minute, false},
		{" 5 ", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"", 0, true},
		{"-1", 0, true},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFindSearchesUpward(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- iocheck.toml --
[run]
jobs = 2
-- a/b/c/keep --
`)
	got, ok, err := Find(filepath.Join(root, "a", "b", "c"))
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", got, ok, err)
	}
	if got != filepath.Join(root, FileName) {
		t.Fatalf("Find = %q", got)
	}

	_, ok, err = Find(t.TempDir())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	// a stray iocheck.toml above the temp dir would make this flaky
	if ok {
		t.Skip("found an iocheck.toml above the temp directory")
	}
}

func TestLoadAndApply(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- iocheck.toml --
[run]
executable = "bin/target"
tests = "cases"
workspace = "ws"
timeout = "1m30s"
jobs = 4
separator = "_"
prefix = ["valgrind", "-q"]
cwd = "."

[env]
LANG = "C"

[log]
level = "debug"
`)
	f, err := Load(filepath.Join(root, FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := Defaults()
	s.Env["KEEP"] = "1"
	f.Apply(&s)

	want := Settings{
		Executable: filepath.Join(root, "bin", "target"),
		TestsDir:   filepath.Join(root, "cases"),
		Workspace:  filepath.Join(root, "ws"),
		Timeout:    90 * time.Second,
		Jobs:       4,
		Separator:  "_",
		Prefix:     []string{"valgrind", "-q"},
		Dir:        root,
		Env:        map[string]string{"KEEP": "1", "LANG": "C"},
		LogLevel:   "debug",
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyKeepsUndefinedDefaults(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- iocheck.toml --
[run]
timeout = 5
executable = "cat"
`)
	f, err := Load(filepath.Join(root, FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := Defaults()
	f.Apply(&s)
	if s.Timeout != 5*time.Second || s.Jobs != 1 || s.Separator != "/" {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.Executable != "cat" {
		t.Fatalf("bare command should stay on PATH, got %q", s.Executable)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[run\n", "failed to parse TOML"},
		{"unknown key", "[run]\nexecutabel = \"x\"\n", "unknown keys: run.executabel"},
		{"jobs", "[run]\njobs = 0\n", "jobs must be at least 1"},
		{"separator", "[run]\nseparator = \"\"\n", "separator must not be empty"},
		{"timeout", "[run]\ntimeout = \"later\"\n", "invalid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testkit.WriteFile(t, t.TempDir(), FileName, []byte(tt.body))
			_, err := Load(p)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseEnv(t *testing.T) {
	got, err := ParseEnv([]string{"A=1", "B=x=y", "A=2", "EMPTY="})
	if err != nil {
		t.Fatalf("ParseEnv: %v", err)
	}
	want := map[string]string{"A": "2", "B": "x=y", "EMPTY": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseEnv mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"NOVALUE", "=1"} {
		if _, err := ParseEnv([]string{bad}); err == nil {
			t.Fatalf("ParseEnv(%q) should fail", bad)
		}
	}
}

func TestFindTestsDir(t *testing.T) {
	base := t.TempDir()
	if _, err := FindTestsDir(base); err == nil {
		t.Fatalf("expected error without any tests directory")
	}
	if err := os.MkdirAll(filepath.Join(base, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "io_tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindTestsDir(base)
	if err != nil {
		t.Fatalf("FindTestsDir: %v", err)
	}
	if got != filepath.Join(base, "io_tests") {
		t.Fatalf("FindTestsDir = %q, want io_tests to win over tests", got)
	}
}

func TestResolveWorkspace(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	s := Defaults()
	created, err := s.ResolveWorkspace()
	if err != nil || !created {
		t.Fatalf("ResolveWorkspace = %v, %v", created, err)
	}
	defer os.RemoveAll(s.Workspace)
	if !strings.HasPrefix(filepath.Base(s.Workspace), WorkspacePrefix) {
		t.Fatalf("workspace %q lacks prefix", s.Workspace)
	}

	s.Workspace = "/fixed"
	if created, _ := s.ResolveWorkspace(); created || s.Workspace != "/fixed" {
		t.Fatalf("configured workspace must be kept")
	}
}
