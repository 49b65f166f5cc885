// Package config resolves run settings from defaults, an optional
// iocheck.toml file and command-line overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"iocheck/internal/casefile"
	"iocheck/internal/process"
)

// FileName is the configuration file searched for from the working directory upward.
const FileName = "iocheck.toml"

// WorkspacePrefix names temporary workspaces.
const WorkspacePrefix = "iocheck-"

// DefaultTestDirs are tried in order when no tests directory is given.
var DefaultTestDirs = []string{"iotests", "io_tests", "tests"}

// Settings is the fully resolved configuration of a run.
type Settings struct {
	Executable string
	TestsDir   string
	// Workspace is empty until resolved; ResolveWorkspace creates a temporary
	// one when nothing was configured.
	Workspace string
	Timeout   time.Duration
	Jobs      int
	Separator string
	Prefix    []string
	Dir       string
	Env       map[string]string
	LogLevel  string
	LogFile   string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Timeout:   process.DefaultTimeout,
		Jobs:      1,
		Separator: casefile.DefaultSeparator,
		Env:       map[string]string{},
	}
}

// File is a decoded iocheck.toml.
type File struct {
	Path string            `toml:"-"`
	Root string            `toml:"-"`
	Run  RunSection        `toml:"run"`
	Env  map[string]string `toml:"env"`
	Log  LogSection        `toml:"log"`

	meta toml.MetaData
}

// RunSection is the [run] table.
type RunSection struct {
	Executable string   `toml:"executable"`
	Tests      string   `toml:"tests"`
	Workspace  string   `toml:"workspace"`
	Timeout    Duration `toml:"timeout"`
	Jobs       int      `toml:"jobs"`
	Separator  string   `toml:"separator"`
	Prefix     []string `toml:"prefix"`
	Cwd        string   `toml:"cwd"`
}

// LogSection is the [log] table.
type LogSection struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration accepts either a Go duration string ("1m30s") or a plain number
// of seconds.
type Duration time.Duration

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		if x < 0 {
			return fmt.Errorf("negative duration %d", x)
		}
		*d = Duration(time.Duration(x) * time.Second)
		return nil
	case float64:
		if x < 0 {
			return fmt.Errorf("negative duration %v", x)
		}
		*d = Duration(time.Duration(x * float64(time.Second)))
		return nil
	case string:
		parsed, err := ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("unsupported duration value %v (%T)", v, v)
	}
}

// ParseDuration parses a Go duration string; a bare integer means seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the nearest configuration file. A missing file is
// not an error.
func Discover(startDir string) (*File, bool, error) {
	p, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	f, err := Load(p)
	if err != nil {
		return nil, true, err
	}
	return f, true, nil
}

// Load decodes the configuration file at path. Unknown keys are rejected.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	f := &File{Path: abs, Root: filepath.Dir(abs)}
	meta, err := toml.DecodeFile(abs, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", abs, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", abs, strings.Join(keys, ", "))
	}
	if meta.IsDefined("run", "jobs") && f.Run.Jobs < 1 {
		return nil, fmt.Errorf("%s: [run].jobs must be at least 1", abs)
	}
	if meta.IsDefined("run", "separator") && f.Run.Separator == "" {
		return nil, fmt.Errorf("%s: [run].separator must not be empty", abs)
	}
	f.meta = meta
	return f, nil
}

// Apply overlays the values defined in the file onto s. Relative paths are
// resolved against the directory holding the file.
func (f *File) Apply(s *Settings) {
	if f == nil {
		return
	}
	set := func(key ...string) bool { return f.meta.IsDefined(key...) }
	if set("run", "executable") {
		s.Executable = f.command(f.Run.Executable)
	}
	if set("run", "tests") {
		s.TestsDir = f.path(f.Run.Tests)
	}
	if set("run", "workspace") {
		s.Workspace = f.path(f.Run.Workspace)
	}
	if set("run", "timeout") {
		s.Timeout = time.Duration(f.Run.Timeout)
	}
	if set("run", "jobs") {
		s.Jobs = f.Run.Jobs
	}
	if set("run", "separator") {
		s.Separator = f.Run.Separator
	}
	if set("run", "prefix") {
		s.Prefix = append([]string(nil), f.Run.Prefix...)
	}
	if set("run", "cwd") {
		s.Dir = f.path(f.Run.Cwd)
	}
	if s.Env == nil {
		s.Env = make(map[string]string, len(f.Env))
	}
	for k, v := range f.Env {
		s.Env[k] = v
	}
	if set("log", "level") {
		s.LogLevel = f.Log.Level
	}
	if set("log", "file") {
		s.LogFile = f.path(f.Log.File)
	}
}

// path resolves p relative to the file's directory.
func (f *File) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.Root, filepath.FromSlash(p))
}

// command is like path, but a bare name such as "cat" with no file of that
// name next to the config is kept for PATH lookup.
func (f *File) command(p string) string {
	if p != "" && !strings.ContainsAny(p, `/\`) {
		if _, err := os.Stat(filepath.Join(f.Root, p)); err != nil {
			return p
		}
	}
	return f.path(p)
}

// ParseEnv parses KEY=VALUE assignments. Later keys win.
func ParseEnv(assignments []string) (map[string]string, error) {
	env := make(map[string]string, len(assignments))
	for _, a := range assignments {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment assignment %q (want KEY=VALUE)", a)
		}
		env[k] = v
	}
	return env, nil
}

// FindTestsDir returns the first existing default tests directory under base.
func FindTestsDir(base string) (string, error) {
	for _, name := range DefaultTestDirs {
		p := filepath.Join(base, name)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no tests directory found (tried %s); use --tests", strings.Join(DefaultTestDirs, ", "))
}

// ResolveWorkspace ensures s.Workspace is set, creating a temporary directory
// when it is empty. The returned flag reports whether it was created here.
func (s *Settings) ResolveWorkspace() (bool, error) {
	if s.Workspace != "" {
		return false, nil
	}
	dir, err := os.MkdirTemp("", WorkspacePrefix)
	if err != nil {
		return false, fmt.Errorf("failed to create workspace: %w", err)
	}
	s.Workspace = dir
	return true, nil
}
