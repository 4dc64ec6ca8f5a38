// Package manifest renders legal fulfillment manifests as spreadsheets for
// counsel. Only metadata is written; ciphertext never leaves the store.
package manifest

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"beacon/internal/legal/models"
)

const (
	summarySheet = "Request"
	entriesSheet = "Signals"
)

// EntryHeader is the column order of the signals sheet.
var EntryHeader = []string{
	"Signal ID",
	"Held In Isolated Storage",
	"Jurisdiction",
	"Encryption Key ID",
	"Stored At (UTC)",
}

var entryWidths = []float64{28, 24, 14, 24, 24}

// WriteXLSX writes m as a two-sheet workbook.
func WriteXLSX(w io.Writer, m *models.Manifest) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	idx, err := f.NewSheet(entriesSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summary := [][2]string{
		{"Legal Request ID", m.RequestID.String()},
		{"Request Type", string(m.RequestType)},
		{"Requesting Agency", m.RequestingAgency},
		{"Document Reference", m.DocumentReference},
		{"Status", string(m.Status)},
		{"Generated At (UTC)", m.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &[]any{row[0], row[1]}); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellStyle(summarySheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style summary row: %w", err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	header := make([]any, len(EntryHeader))
	for i, h := range EntryHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(entriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(EntryHeader), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(entriesSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for col, width := range entryWidths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(entriesSheet, name, name, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, e := range m.Entries {
		row := []any{e.SignalID.String(), yesNo(e.Present), e.Jurisdiction, e.EncryptionKeyID, ""}
		if e.CreatedAt != nil {
			row[4] = e.CreatedAt.UTC().Format(time.RFC3339)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(entriesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	f.SetActiveSheet(idx)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
