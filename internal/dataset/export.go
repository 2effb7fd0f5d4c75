package dataset

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"care-ats/internal/aggregator"
	"care-ats/internal/types"
)

// candidateHeader doubles as an import template: every column is recognised
// by detectColumns.
var candidateHeader = []string{
	"Phone", "Name", "Status", "Source", "Roles", "Qualifications",
	"Driver", "DBS", "Right to work", "Training", "Earliest start",
	"Preferred hours", "Experience", "Energy", "Last contacted",
}

var ledgerHeader = []string{"Call ID", "Phone", "Status", "Detail", "Created", "Updated"}

const timeLayout = "2006-01-02 15:04:05"

// ExportCandidates writes candidates as a single-sheet workbook.
func ExportCandidates(w io.Writer, cands []types.Candidate) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Candidates"
	f.SetSheetName("Sheet1", sheet)

	if err := writeHeader(f, sheet, candidateHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, c := range cands {
		row := []any{
			c.Phone, c.Name, c.Status, c.Source,
			strings.Join(c.Roles, ", "), strings.Join(c.Qualifications, ", "),
			c.DriverStatus, c.DBSStatus, c.RightToWork, c.TrainingStatus,
			c.EarliestStartDate, c.PreferredHours, c.ExperienceSummary,
			"", "",
		}
		if c.EnergyScore != nil {
			row[13] = *c.EnergyScore
		}
		if c.LastContactedAt != nil {
			row[14] = c.LastContactedAt.UTC().Format(timeLayout)
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	setWidths(f, sheet, len(candidateHeader), 18)
	f.SetColWidth(sheet, "M", "M", 50)

	return f.Write(w)
}

// ExportLedger writes the ledger and a summary sheet of status counts.
func ExportLedger(w io.Writer, entries []types.LedgerEntry, s aggregator.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	const (
		ledgerSheet  = "Ledger"
		summarySheet = "Summary"
	)
	f.SetSheetName("Sheet1", ledgerSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	if err := writeHeader(f, ledgerSheet, ledgerHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range entries {
		row := []any{
			e.CallID, e.Phone, e.Status, e.Detail,
			e.CreatedAt.UTC().Format(timeLayout), e.UpdatedAt.UTC().Format(timeLayout),
		}
		if err := writeRow(f, ledgerSheet, i+2, row); err != nil {
			return err
		}
	}
	setWidths(f, ledgerSheet, len(ledgerHeader), 20)
	f.SetColWidth(ledgerSheet, "D", "D", 60)

	if err := writeSummary(f, summarySheet, s); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	return f.Write(w)
}

func writeSummary(f *excelize.File, sheet string, s aggregator.Summary) error {
	if err := writeHeader(f, sheet, []string{"Metric", "Value"}); err != nil {
		return err
	}
	rows := [][]any{
		{"Total calls", s.Total},
		{"Finished", s.Finished},
		{"In flight", s.InFlight},
		{"Failure rate", fmt.Sprintf("%.1f%%", s.FailureRate*100)},
		{"Degraded", s.DegradedCount},
	}

	statuses := make([]string, 0, len(s.StatusCounts))
	for status := range s.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		rows = append(rows, []any{"status: " + status, s.StatusCounts[status]})
	}

	for i, r := range rows {
		if err := writeRow(f, sheet, i+2, r); err != nil {
			return err
		}
	}
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 14)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", len(rows)+3), "Generated:")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", len(rows)+3), time.Now().UTC().Format(timeLayout))
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := writeRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func setWidths(f *excelize.File, sheet string, n int, width float64) {
	last, _ := excelize.ColumnNumberToName(n)
	f.SetColWidth(sheet, "A", last, width)
}
