// Package compare checks an execution result against a case's recorded
// expectations and describes every mismatch as a Failure.
//
// All checks run; failures are accumulated rather than stopping at the
// first mismatch. An absent .out or .err file disables that check.
package compare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"iocheck/internal/casefile"
	"iocheck/internal/process"
)

// Kind classifies a failure.
type Kind string

const (
	KindStatusMismatch       Kind = "status-mismatch"
	KindOutputMismatch       Kind = "output-mismatch"
	KindMalformedExpectation Kind = "malformed-expectation"
	KindExecutionError       Kind = "execution-error"
	KindExecutionTimeout     Kind = "execution-timeout"
)

// Stream names a captured output stream.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Failure is one reason a case did not pass.
type Failure struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// status mismatch
	ExpectedCode int `json:"expected_code" yaml:"expected_code"`
	ActualCode   int `json:"actual_code" yaml:"actual_code"`

	// output mismatch
	Stream       Stream `json:"stream,omitempty" yaml:"stream,omitempty"`
	ExpectedPath string `json:"expected_path,omitempty" yaml:"expected_path,omitempty"`
	ActualPath   string `json:"actual_path,omitempty" yaml:"actual_path,omitempty"`

	// per-case errors
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Compare runs the exit-code, stdout and stderr checks. The error is
// non-nil only when an expectation could not be read or parsed; a
// malformed .exit file yields casefile.ErrMalformedExpectation.
func Compare(actual *process.Result, expected casefile.Case) ([]Failure, error) {
	if actual == nil {
		return nil, errors.New("compare: nil result")
	}
	wantCode, err := expected.ExitCode()
	if err != nil {
		return nil, err
	}

	var failures []Failure
	if actual.ExitCode != wantCode {
		failures = append(failures, Failure{
			Kind:         KindStatusMismatch,
			ExpectedCode: wantCode,
			ActualCode:   actual.ExitCode,
		})
	}

	checks := []struct {
		stream Stream
		want   func() (string, bool)
		got    string
	}{
		{StreamStdout, expected.Stdout, actual.Stdout},
		{StreamStderr, expected.Stderr, actual.Stderr},
	}
	for _, c := range checks {
		wantPath, ok := c.want()
		if !ok {
			continue
		}
		same, err := SameContent(wantPath, c.got)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", c.stream, err)
		}
		if !same {
			failures = append(failures, Failure{
				Kind:         KindOutputMismatch,
				Stream:       c.stream,
				ExpectedPath: wantPath,
				ActualPath:   c.got,
			})
		}
	}
	return failures, nil
}

const chunkSize = 32 * 1024

// SameContent reports whether two files hold byte-identical content.
func SameContent(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false, err
	}
	ib, err := fb.Stat()
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}

// FromError converts a per-case error into a failure record.
func FromError(err error) Failure {
	kind := KindExecutionError
	switch {
	case errors.Is(err, casefile.ErrMalformedExpectation):
		kind = KindMalformedExpectation
	case errors.Is(err, process.ErrTimeout):
		kind = KindExecutionTimeout
	}
	f := Failure{Kind: kind, Detail: err.Error()}
	var te *process.TimeoutError
	if errors.As(err, &te) {
		f.ActualPath = te.Stdout
	}
	return f
}
