package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"iocheck/internal/compare"
	"iocheck/internal/suite"
)

// PrettyOpts configures Pretty.
type PrettyOpts struct {
	Color bool
	Diff  bool
	Quiet bool
}

type palette struct {
	pass, fail, warn, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.warn, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) label(s suite.Status) string {
	switch s {
	case suite.StatusPassed:
		return p.pass.Sprint("PASS  ")
	case suite.StatusFailed:
		return p.fail.Sprint("FAIL  ")
	case suite.StatusUpdated:
		return p.warn.Sprint("UPDATE")
	default:
		return p.warn.Sprint("SKIP  ")
	}
}

const indent = "        "

// Pretty writes one line per case, failure details below each failed case
// and a closing summary line.
func Pretty(w io.Writer, sum suite.Summary, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	var b strings.Builder
	for _, r := range sum.Results {
		if opts.Quiet && r.Status != suite.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "%s %s", p.label(r.Status), r.Name)
		if r.Status != suite.StatusSkipped {
			b.WriteString(p.dim.Sprintf(" (%s)", formatElapsed(r.Elapsed)))
		}
		b.WriteByte('\n')
		for _, f := range r.Failures {
			writeIndented(&b, f.Message())
			if opts.Diff {
				if d, ok := f.Diff(compare.DefaultDiffLimit); ok {
					writeIndented(&b, strings.TrimRight(d, "\n"))
				}
			}
		}
		for _, u := range r.Updated {
			writeIndented(&b, "rewrote "+u)
		}
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(summaryLine(sum, p))
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func summaryLine(sum suite.Summary, p palette) string {
	parts := []string{p.pass.Sprintf("%d passed", sum.Passed)}
	if sum.Failed > 0 {
		parts = append(parts, p.fail.Sprintf("%d failed", sum.Failed))
	} else {
		parts = append(parts, "0 failed")
	}
	if sum.Updated > 0 {
		parts = append(parts, p.warn.Sprintf("%d updated", sum.Updated))
	}
	if sum.Skipped > 0 {
		parts = append(parts, p.warn.Sprintf("%d skipped", sum.Skipped))
	}
	noun := "cases"
	if sum.Total == 1 {
		noun = "case"
	}
	return fmt.Sprintf("%s: %s in %s", p.bold.Sprintf("%d %s", sum.Total, noun), strings.Join(parts, ", "), formatElapsed(sum.Elapsed))
}

// Short writes one line per case: status, name and the first failure title.
func Short(w io.Writer, sum suite.Summary, quiet bool) error {
	var b strings.Builder
	for _, r := range sum.Results {
		if quiet && r.Status != suite.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "%s %s", strings.ToUpper(string(r.Status)), r.Name)
		if len(r.Failures) > 0 {
			b.WriteString(": " + r.Failures[0].Title())
			if extra := len(r.Failures) - 1; extra > 0 {
				fmt.Fprintf(&b, " (+%d more)", extra)
			}
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "total=%d passed=%d failed=%d updated=%d skipped=%d\n", sum.Total, sum.Passed, sum.Failed, sum.Updated, sum.Skipped)
	_, err := io.WriteString(w, b.String())
	return err
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
