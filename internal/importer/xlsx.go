package importer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cloudbday/cloudbday/internal/person"
)

// SheetName is the worksheet of the template.
const SheetName = "Birthdays"

// ReadXLSX parses the first worksheet of an XLSX workbook.
func ReadXLSX(r io.Reader) ([]person.ImportRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRows(rows)
}

// Template returns an XLSX workbook with the import header row and one
// example row. The birthday column is formatted as text so spreadsheet apps
// keep "--MM-DD" values as typed.
func Template() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return nil, fmt.Errorf("failed to create text style: %w", err)
	}

	example := []string{"ada@example.com", "1815-12-10", "Ada", "Lovelace"}
	for i, header := range Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStr(SheetName, col+"1", header); err != nil {
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		if err := f.SetCellStr(SheetName, col+"2", example[i]); err != nil {
			return nil, fmt.Errorf("failed to set example: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, 24); err != nil {
			return nil, fmt.Errorf("failed to set width: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColStyle(SheetName, "B", textStyle); err != nil {
		return nil, fmt.Errorf("failed to style birthday column: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
