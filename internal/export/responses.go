// Package export renders diagnostic responses as an .xlsx workbook.
package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"fluxia/internal/domain"
)

// ResponsesHeader columns of the responses sheet.
var ResponsesHeader = []string{"Date", "Patient", "Category", "Question", "Response"}

var responsesColumnWidths = []float64{12, 24, 20, 40, 50}

const maxSheetName = 31

var invalidSheetChars = regexp.MustCompile(`[\[\]:*?/\\]`)

// SheetName derives a valid Excel sheet name from a diagnostic name.
func SheetName(name string) string {
	name = strings.TrimSpace(invalidSheetChars.ReplaceAllString(name, " "))
	if name == "" {
		return "Responses"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// ResponsesWorkbook writes one row per response. patientNames maps patient id
// to full name; unknown ids fall back to the id itself.
func ResponsesWorkbook(d *domain.Diagnostic, patientNames map[string]string, responses []*domain.PatientResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(d.Name)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ResponsesHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, colName, colName, responsesColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range responses {
		patient := patientNames[r.PatientID]
		if patient == "" {
			patient = r.PatientID
		}
		row := []any{r.ResponseDate, patient, r.CategoryName, r.QuestionText, r.Response}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
