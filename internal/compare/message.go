package compare

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// DefaultDiffLimit caps the size of files rendered by Diff.
const DefaultDiffLimit = 64 * 1024

// Title is a one-line summary of the failure.
func (f Failure) Title() string {
	switch f.Kind {
	case KindStatusMismatch:
		return fmt.Sprintf("status code check failed: expected %d, got %d", f.ExpectedCode, f.ActualCode)
	case KindOutputMismatch:
		return fmt.Sprintf("%s check failed", strings.ToUpper(string(f.Stream)))
	case KindMalformedExpectation:
		return "malformed expectation: " + f.Detail
	case KindExecutionTimeout:
		return "timeout: " + f.Detail
	default:
		return "execution failed: " + f.Detail
	}
}

// DiffHint is a command a human can paste to compare the two outputs.
func (f Failure) DiffHint() string {
	if f.Kind != KindOutputMismatch {
		return ""
	}
	return fmt.Sprintf("diff -u %s %s", f.ExpectedPath, f.ActualPath)
}

// Message renders the failure for humans: the title plus, for output
// mismatches, both paths and the diff command.
func (f Failure) Message() string {
	if f.Kind != KindOutputMismatch {
		return f.Title()
	}
	var b strings.Builder
	b.WriteString(f.Title())
	fmt.Fprintf(&b, "\n  Expected: %s", f.ExpectedPath)
	fmt.Fprintf(&b, "\n  Provided: %s", f.ActualPath)
	fmt.Fprintf(&b, "\n  DIFF: %s", f.DiffHint())
	return b.String()
}

func (f Failure) String() string { return f.Title() }

// Diff renders an inline diff of an output mismatch (-expected +actual).
// It returns false for other kinds, for files over limit bytes and for
// content that is not valid UTF-8.
func (f Failure) Diff(limit int64) (string, bool) {
	if f.Kind != KindOutputMismatch {
		return "", false
	}
	if limit <= 0 {
		limit = DefaultDiffLimit
	}
	want, ok := readText(f.ExpectedPath, limit)
	if !ok {
		return "", false
	}
	got, ok := readText(f.ActualPath, limit)
	if !ok {
		return "", false
	}
	return cmp.Diff(want, got), true
}

func readText(path string, limit int64) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > limit {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
