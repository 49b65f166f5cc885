// Package report renders a suite summary for humans (pretty, short) and
// machines (json, yaml, xlsx).
package report

import (
	"fmt"
	"strings"
	"time"

	"iocheck/internal/compare"
	"iocheck/internal/suite"
	"iocheck/internal/version"
)

// Format selects a renderer.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatShort  Format = "short"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
)

// Formats lists the formats accepted by ParseFormat.
var Formats = []Format{FormatPretty, FormatShort, FormatJSON, FormatYAML}

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, known := range Formats {
		names[i] = string(known)
	}
	return "", fmt.Errorf("unsupported format %q (must be %s)", s, strings.Join(names, ", "))
}

// Meta describes the run a summary belongs to.
type Meta struct {
	Executable string
	TestsDir   string
	Workspace  string
}

// Document is the serialisable form of a summary.
type Document struct {
	Tool       string    `json:"tool" yaml:"tool"`
	Version    string    `json:"version" yaml:"version"`
	Executable string    `json:"executable" yaml:"executable"`
	TestsDir   string    `json:"tests_dir" yaml:"tests_dir"`
	Workspace  string    `json:"workspace" yaml:"workspace"`
	OK         bool      `json:"ok" yaml:"ok"`
	Total      int       `json:"total" yaml:"total"`
	Passed     int       `json:"passed" yaml:"passed"`
	Failed     int       `json:"failed" yaml:"failed"`
	Updated    int       `json:"updated,omitempty" yaml:"updated,omitempty"`
	Skipped    int       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	ElapsedMS  float64   `json:"elapsed_ms" yaml:"elapsed_ms"`
	Cases      []CaseDoc `json:"cases" yaml:"cases"`
}

// CaseDoc is one case inside a Document.
type CaseDoc struct {
	Name      string       `json:"name" yaml:"name"`
	Status    string       `json:"status" yaml:"status"`
	ExitCode  int          `json:"exit_code" yaml:"exit_code"`
	ElapsedMS float64      `json:"elapsed_ms" yaml:"elapsed_ms"`
	Argv      []string     `json:"argv,omitempty" yaml:"argv,omitempty"`
	Stdout    string       `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr    string       `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Failures  []FailureDoc `json:"failures,omitempty" yaml:"failures,omitempty"`
	Updated   []string     `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// FailureDoc is one failure inside a CaseDoc. Exit codes are only set for
// status mismatches.
type FailureDoc struct {
	Kind         string `json:"kind" yaml:"kind"`
	Message      string `json:"message" yaml:"message"`
	ExpectedCode *int   `json:"expected_code,omitempty" yaml:"expected_code,omitempty"`
	ActualCode   *int   `json:"actual_code,omitempty" yaml:"actual_code,omitempty"`
	Stream       string `json:"stream,omitempty" yaml:"stream,omitempty"`
	ExpectedPath string `json:"expected_path,omitempty" yaml:"expected_path,omitempty"`
	ActualPath   string `json:"actual_path,omitempty" yaml:"actual_path,omitempty"`
	Diff         string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// NewDocument converts a summary. withDiff embeds inline diffs for small
// text outputs.
func NewDocument(sum suite.Summary, meta Meta, withDiff bool) Document {
	doc := Document{
		Tool:       "iocheck",
		Version:    version.Get().Version,
		Executable: meta.Executable,
		TestsDir:   meta.TestsDir,
		Workspace:  meta.Workspace,
		OK:         sum.OK(),
		Total:      sum.Total,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Updated:    sum.Updated,
		Skipped:    sum.Skipped,
		ElapsedMS:  toMillis(sum.Elapsed),
		Cases:      make([]CaseDoc, 0, len(sum.Results)),
	}
	for _, r := range sum.Results {
		cd := CaseDoc{
			Name:      r.Name,
			Status:    string(r.Status),
			ExitCode:  r.ExitCode,
			ElapsedMS: toMillis(r.Elapsed),
			Argv:      r.Argv,
			Stdout:    r.Stdout,
			Stderr:    r.Stderr,
			Updated:   r.Updated,
		}
		for _, f := range r.Failures {
			cd.Failures = append(cd.Failures, newFailureDoc(f, withDiff))
		}
		doc.Cases = append(doc.Cases, cd)
	}
	return doc
}

func newFailureDoc(f compare.Failure, withDiff bool) FailureDoc {
	fd := FailureDoc{
		Kind:         string(f.Kind),
		Message:      f.Title(),
		Stream:       string(f.Stream),
		ExpectedPath: f.ExpectedPath,
		ActualPath:   f.ActualPath,
	}
	if f.Kind == compare.KindStatusMismatch {
		want, got := f.ExpectedCode, f.ActualCode
		fd.ExpectedCode, fd.ActualCode = &want, &got
	}
	if withDiff {
		if d, ok := f.Diff(compare.DefaultDiffLimit); ok {
			fd.Diff = d
		}
	}
	return fd
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
