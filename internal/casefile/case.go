// Package casefile models a single golden-file test case and resolves its
// sidecar files (<name>.in, .out, .err, .exit, .arg).
package casefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// DefaultSeparator joins namespace segments in case identifiers.
const DefaultSeparator = "/"

// Suffix names one kind of sidecar file.
type Suffix string

const (
	// SuffixIn holds the bytes fed to the target's stdin.
	SuffixIn Suffix = "in"
	// SuffixOut holds the expected stdout.
	SuffixOut Suffix = "out"
	// SuffixErr holds the expected stderr.
	SuffixErr Suffix = "err"
	// SuffixExit holds the expected exit code as decimal text.
	SuffixExit Suffix = "exit"
	// SuffixArg holds command-line arguments, one per line.
	SuffixArg Suffix = "arg"
)

// Suffixes lists every recognised sidecar suffix.
var Suffixes = []Suffix{SuffixIn, SuffixOut, SuffixErr, SuffixExit, SuffixArg}

// ParseSuffix maps a file extension (with or without the leading dot) to a
// Suffix. Matching is case-sensitive.
func ParseSuffix(ext string) (Suffix, bool) {
	ext = strings.TrimPrefix(ext, ".")
	for _, s := range Suffixes {
		if string(s) == ext {
			return s, true
		}
	}
	return "", false
}

// ErrMalformedExpectation is matched by errors.Is for unparseable .exit files.
var ErrMalformedExpectation = errors.New("malformed expectation")

// MalformedExpectationError reports a sidecar file whose content cannot be interpreted.
type MalformedExpectationError struct {
	Path    string
	Content string
	Err     error
}

func (e *MalformedExpectationError) Error() string {
	return fmt.Sprintf("%s: malformed expectation %q: %v", e.Path, e.Content, e.Err)
}

func (e *MalformedExpectationError) Unwrap() error { return e.Err }

// Is makes every MalformedExpectationError match ErrMalformedExpectation.
func (e *MalformedExpectationError) Is(target error) bool {
	return target == ErrMalformedExpectation
}

// Case identifies one logical test: a base name inside a directory of the
// discovery root.
type Case struct {
	RootDir string // discovery root
	RelDir  string // directory relative to RootDir, "" for the root itself
	Name    string // base name shared by all sidecar files
}

// New builds a Case, normalising RelDir so that the root is "".
func New(root, relDir, name string) Case {
	relDir = filepath.Clean(relDir)
	if relDir == "." {
		relDir = ""
	}
	return Case{RootDir: root, RelDir: relDir, Name: name}
}

// Segments returns the namespace path segments of the case.
func (c Case) Segments() []string {
	if c.RelDir == "" {
		return nil
	}
	return strings.Split(filepath.ToSlash(c.RelDir), "/")
}

// Namespace joins the relative directory segments with sep.
func (c Case) Namespace(sep string) string {
	return strings.Join(c.Segments(), sep)
}

// FullName is the namespace and name joined with sep; it identifies the case
// in reports and in the workspace.
func (c Case) FullName(sep string) string {
	ns := c.Namespace(sep)
	if ns == "" {
		return c.Name
	}
	return ns + sep + c.Name
}

// ID is FullName with DefaultSeparator.
func (c Case) ID() string {
	return c.FullName(DefaultSeparator)
}

// Dir returns the absolute-or-root-relative directory that holds the sidecars.
func (c Case) Dir() string {
	return filepath.Join(c.RootDir, c.RelDir)
}

// Path returns the sidecar path for suffix whether or not it exists.
func (c Case) Path(s Suffix) string {
	return filepath.Join(c.Dir(), c.Name+"."+string(s))
}

// Resolve returns the sidecar path for suffix when the file exists.
func (c Case) Resolve(s Suffix) (string, bool) {
	p := c.Path(s)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Stdin returns the .in file if present.
func (c Case) Stdin() (string, bool) { return c.Resolve(SuffixIn) }

// Stdout returns the expected-stdout file if present.
func (c Case) Stdout() (string, bool) { return c.Resolve(SuffixOut) }

// Stderr returns the expected-stderr file if present.
func (c Case) Stderr() (string, bool) { return c.Resolve(SuffixErr) }

// ExitCode returns the expected exit code, 0 when no .exit file exists.
func (c Case) ExitCode() (int, error) {
	p, ok := c.Resolve(SuffixExit)
	if !ok {
		return 0, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p, err)
	}
	return ParseExitCode(p, data)
}

// ParseExitCode interprets .exit content: one base-10 integer with optional
// surrounding whitespace.
func ParseExitCode(path string, data []byte) (int, error) {
	text := strings.TrimSpace(string(data))
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &MalformedExpectationError{Path: path, Content: text, Err: err}
	}
	code, err := safecast.Conv[int](n)
	if err != nil {
		return 0, &MalformedExpectationError{Path: path, Content: text, Err: err}
	}
	return code, nil
}

// Args returns the argument list from the .arg file, empty when absent.
func (c Case) Args() ([]string, error) {
	p, ok := c.Resolve(SuffixArg)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return SplitArgs(data), nil
}

// SplitArgs splits .arg content into one argument per line. Only the final
// line terminator is dropped; blank lines in between become "" arguments.
func SplitArgs(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func (c Case) String() string {
	return c.ID()
}
