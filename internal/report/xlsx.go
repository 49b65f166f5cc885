package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"iocheck/internal/suite"
)

const (
	casesSheet   = "Cases"
	summarySheet = "Summary"

	patternType  = "pattern"
	patternSolid = 1
	failBgColor  = "FF5900"
	warnBgColor  = "FFEB9C"
	headerColor  = "D9E1F2"

	defaultColumnWidth = 14
	wideColumnWidth    = 48
)

var xlsxHeaders = []string{
	"Case", "Status", "Exit code", "Elapsed (ms)", "Failures", "Stdout capture", "Stderr capture",
}

// WriteXLSX exports the document as a workbook with a per-case sheet and a
// summary sheet. An existing file at path is overwritten.
func WriteXLSX(path string, doc Document) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeCasesSheet(f, doc); err != nil {
		return err
	}
	if err := writeSummarySheet(f, doc); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

func fillStyle(f *excelize.File, bg string, bold bool) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: bold},
		Fill: excelize.Fill{Type: patternType, Pattern: patternSolid, Color: []string{bg}},
		Alignment: &excelize.Alignment{
			Vertical: "top",
			WrapText: true,
		},
	})
}

func writeCasesSheet(f *excelize.File, doc Document) error {
	headerStyle, err := fillStyle(f, headerColor, true)
	if err != nil {
		return err
	}
	failStyle, err := fillStyle(f, failBgColor, false)
	if err != nil {
		return err
	}
	warnStyle, err := fillStyle(f, warnBgColor, false)
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(casesSheet, "A", lastCol, defaultColumnWidth); err != nil {
		return err
	}
	for _, col := range []string{"A", "E", "F", "G"} {
		if err := f.SetColWidth(casesSheet, col, col, wideColumnWidth); err != nil {
			return err
		}
	}

	for i, h := range xlsxHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(casesSheet, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(casesSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, c := range doc.Cases {
		row := i + 2
		failures := make([]string, len(c.Failures))
		for j, fd := range c.Failures {
			failures[j] = fd.Message
		}
		values := []any{c.Name, c.Status, c.ExitCode, c.ElapsedMS, strings.Join(failures, "\n"), c.Stdout, c.Stderr}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(casesSheet, cell, v); err != nil {
				return err
			}
		}

		style := 0
		switch c.Status {
		case string(suite.StatusFailed):
			style = failStyle
		case string(suite.StatusSkipped), string(suite.StatusUpdated):
			style = warnStyle
		}
		if style != 0 {
			first := fmt.Sprintf("A%d", row)
			last := fmt.Sprintf("%s%d", lastCol, row)
			if err := f.SetCellStyle(casesSheet, first, last, style); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, doc Document) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	rows := [][2]any{
		{"Executable", doc.Executable},
		{"Tests", doc.TestsDir},
		{"Workspace", doc.Workspace},
		{"Version", doc.Version},
		{"Total", doc.Total},
		{"Passed", doc.Passed},
		{"Failed", doc.Failed},
		{"Updated", doc.Updated},
		{"Skipped", doc.Skipped},
		{"Elapsed (ms)", doc.ElapsedMS},
	}
	for i, r := range rows {
		row := i + 1
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), r[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r[1]); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", defaultColumnWidth); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "B", wideColumnWidth)
}
