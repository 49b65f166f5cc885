package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"iocheck/internal/suite"
)

// Options configures Write.
type Options struct {
	Format Format
	Meta   Meta
	// Color enables ANSI colors in the pretty format.
	Color bool
	// Diff embeds inline diffs of small text mismatches.
	Diff bool
	// Quiet drops passing cases from the pretty and short formats.
	Quiet bool
}

// Write renders sum to w in the selected format.
func Write(w io.Writer, sum suite.Summary, opts Options) error {
	switch opts.Format {
	case FormatPretty, "":
		return Pretty(w, sum, PrettyOpts{Color: opts.Color, Diff: opts.Diff, Quiet: opts.Quiet})
	case FormatShort:
		return Short(w, sum, opts.Quiet)
	case FormatJSON:
		return JSON(w, NewDocument(sum, opts.Meta, opts.Diff))
	case FormatYAML:
		return YAML(w, NewDocument(sum, opts.Meta, opts.Diff))
	default:
		return fmt.Errorf("unsupported format %q", opts.Format)
	}
}

// JSON writes the document as indented JSON.
func JSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// YAML writes the document as YAML.
func YAML(w io.Writer, doc Document) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error marshalling report: %w", err)
	}
	_, err = w.Write(out)
	return err
}
