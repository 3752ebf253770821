package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"catalog/internal/importer"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	failuresSheet = "Failures"
)

var (
	countHeaders   = []string{"Entity", "Created", "Updated", "Skipped", "Deleted", "Total"}
	failureHeaders = []string{"Entity", "Remote ID", "Page", "Message"}
)

// WriteSummary saves the run summary as an xlsx workbook at path.
func WriteSummary(path string, summary *importer.Summary) error {
	f, err := build(summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, summary *importer.Summary) error {
	f, err := build(summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func build(summary *importer.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummarySheet(f, summary, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeFailuresSheet(f, summary, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	idx, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(idx)
	return f, nil
}

func writeSummarySheet(f *excelize.File, summary *importer.Summary, headerStyle int) error {
	status := "completed"
	if summary.Aborted {
		status = "aborted"
	}
	meta := [][]interface{}{
		{"Run", summary.RunID},
		{"Status", status},
		{"Dry run", summary.DryRun},
		{"Started", summary.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished", summary.FinishedAt.UTC().Format(time.RFC3339)},
		{"Duration", summary.Duration().Round(time.Millisecond).String()},
		{"Processed", summary.Processed},
		{"Failures", len(summary.Failures)},
	}
	for i, row := range meta {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	headerRow := len(meta) + 2
	if err := writeHeader(f, summarySheet, headerRow, countHeaders, headerStyle); err != nil {
		return err
	}
	for i, row := range summary.Stats.Rows() {
		values := []interface{}{row.Entity, row.Created, row.Updated, row.Skipped, row.Deleted, row.Total()}
		if err := setRow(f, summarySheet, headerRow+1+i, values); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 14)
	_ = f.SetColWidth(summarySheet, "B", "F", 38)
	return nil
}

func writeFailuresSheet(f *excelize.File, summary *importer.Summary, headerStyle int) error {
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("failed to create failures sheet: %w", err)
	}
	if err := writeHeader(f, failuresSheet, 1, failureHeaders, headerStyle); err != nil {
		return err
	}
	for i, failure := range summary.Failures {
		values := []interface{}{failure.Entity, optionalInt(failure.RemoteID), optionalInt(int64(failure.Page)), failure.Message}
		if err := setRow(f, failuresSheet, i+2, values); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(failuresSheet, "A", "C", 12)
	_ = f.SetColWidth(failuresSheet, "D", "D", 80)
	return nil
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string, style int) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(f, sheet, row, values); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(headers), row)
	return f.SetCellStyle(sheet, first, last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func optionalInt(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
