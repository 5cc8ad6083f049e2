package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cloudbday/cloudbday/internal/person"
)

func TestReadCSV_Positional(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader("ada@acme.com,1985-03-01\nbob@acme.com, --02-02 ,Bob,Builder\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []person.ImportRecord{
		{Email: "ada@acme.com", Birthday: "1985-03-01"},
		{Email: "bob@acme.com", Birthday: "--02-02", FirstName: "Bob", LastName: "Builder"},
	}, recs)
}

// TestPurpose: Validates header-driven column mapping in CSV uploads.
// Scope: Unit Test
// Expected: Columns are matched by header name regardless of order and case.
// Test Case ID: IMP-01
func TestReadCSV_Header(t *testing.T) {
	in := "Last Name,Birthday,EMAIL\nLovelace,12-10,ada@acme.com\n"
	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ada@acme.com", recs[0].Email)
	assert.Equal(t, "12-10", recs[0].Birthday)
	assert.Equal(t, "Lovelace", recs[0].LastName)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = ReadCSV(strings.NewReader("email,name\nada@acme.com,Ada\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

// TestPurpose: Validates that the generated template reads back through the XLSX importer.
// Scope: Unit Test
// Expected: The template has the header row and yields the example record.
// Test Case ID: IMP-02
func TestTemplate_RoundTrip(t *testing.T) {
	data, err := Template()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	require.NoError(t, f.Close())

	recs, err := Read(bytes.NewReader(data), DetectFormat("birthdays.xlsx", ""))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, person.ImportRecord{Email: "ada@example.com", Birthday: "1815-12-10", FirstName: "Ada", LastName: "Lovelace"}, recs[0])
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("x.XLSX", ""))
	assert.Equal(t, FormatXLSX, DetectFormat("", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Equal(t, FormatCSV, DetectFormat("x.csv", "text/csv"))
}
