// Package importer reads bulk birthday uploads from CSV and XLSX files and
// produces the XLSX template offered to administrators.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudbday/cloudbday/internal/person"
)

// Columns is the column order of the template and of header-less uploads.
var Columns = []string{"email", "birthday", "first_name", "last_name"}

// ErrNoRows is returned for an upload without data rows.
var ErrNoRows = errors.New("import file has no rows")

// ErrMissingColumn is returned when a header row lacks a required column.
var ErrMissingColumn = errors.New("import file is missing a required column")

// Format is an upload file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from a file name or content type, defaulting
// to CSV.
func DetectFormat(filename, contentType string) Format {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".xlsx"),
		strings.Contains(contentType, "spreadsheetml"):
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Read parses r in format f.
func Read(r io.Reader, f Format) ([]person.ImportRecord, error) {
	if f == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// ReadCSV parses comma separated rows. A first row whose cells name the
// columns is treated as a header; otherwise columns follow Columns.
func ReadCSV(r io.Reader) ([]person.ImportRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows)
}

// fromRows maps raw rows to import records, skipping blank rows.
func fromRows(rows [][]string) ([]person.ImportRecord, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	index := map[string]int{"email": 0, "birthday": 1, "first_name": 2, "last_name": 3}
	if isHeader(rows[0]) {
		index = map[string]int{}
		for i, cell := range rows[0] {
			index[normalizeHeader(cell)] = i
		}
		for _, required := range []string{"email", "birthday"} {
			if _, ok := index[required]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
			}
		}
		rows = rows[1:]
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]person.ImportRecord, 0, len(rows))
	for _, row := range rows {
		rec := person.ImportRecord{
			Email:     cell(row, "email"),
			Birthday:  cell(row, "birthday"),
			FirstName: cell(row, "first_name"),
			LastName:  cell(row, "last_name"),
		}
		if rec.Email == "" && rec.Birthday == "" {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

func isHeader(row []string) bool {
	for _, c := range row {
		if normalizeHeader(c) == "email" {
			return true
		}
	}
	return false
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
