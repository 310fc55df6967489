package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"telemetry-store/internal/telemetry/application"
)

// BuildHistoryCSV renders an entity history listing as CSV.
func BuildHistoryCSV(history application.HistoryResponse) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"entity_id", "time", "attribute", "value", "metadata"}); err != nil {
		return nil, err
	}
	for _, entry := range history.Data {
		if err := writer.Write([]string{
			history.EntityID,
			entry.Time,
			entry.Attribute,
			string(entry.Value),
			string(entry.Metadata),
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders an entity history listing as a workbook.
func BuildHistoryXLSX(history application.HistoryResponse) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "history"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Entity")
	_ = f.SetCellValue(sheet, "B1", history.EntityID)
	_ = f.SetCellValue(sheet, "A3", "Time")
	_ = f.SetCellValue(sheet, "B3", "Attribute")
	_ = f.SetCellValue(sheet, "C3", "Value")
	_ = f.SetCellValue(sheet, "D3", "Metadata")
	for i, entry := range history.Data {
		row := i + 4
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), entry.Time)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), entry.Attribute)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(entry.Value))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(entry.Metadata))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryPDF renders a minimal PDF for an entity history listing.
func BuildHistoryPDF(history application.HistoryResponse) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Telemetry History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Entity: %s", history.EntityID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", len(history.Data)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(55, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Attribute", "1", 0, "C", false, 0, "")
	pdf.CellFormat(95, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, entry := range history.Data {
		pdf.CellFormat(55, 6, entry.Time, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, entry.Attribute, "1", 0, "L", false, 0, "")
		pdf.CellFormat(95, 6, truncate(string(entry.Value), 60), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
