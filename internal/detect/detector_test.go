package detect

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

func TestIsHeaderRow(t *testing.T) {
	cases := []struct {
		name  string
		cells []string
		want  bool
	}{
		{"typical header", []string{"Vendor", "Invoice No", "Total"}, true},
		{"numeric cell", []string{"Vendor", "42", "Total"}, false},
		{"formatted number", []string{"Vendor", "1,250.00"}, false},
		{"empty cell", []string{"Vendor", "", "Total"}, false},
		{"empty row", nil, false},
		{"single label", []string{"Invoices"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsHeaderRow(tc.cells))
		})
	}
}

func TestDetectCSVWithHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoices.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll([][]string{
		{"Vendor", "Invoice No", "Total"},
		{"Acme Corp", "INV-001", "108.00"},
	}))
	require.NoError(t, f.Close())

	d := NewDetector(nil)
	profile, err := d.Detect(context.Background(), entity.RawDocument{SourcePath: path, FileExt: "csv"})
	require.NoError(t, err)
	assert.Equal(t, constants.Tabular, profile.Kind)
	assert.Equal(t, []string{"Vendor", "Invoice No", "Total"}, profile.ColumnHeaders)
}

func TestDetectCSVWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte("Acme Corp,INV-001,108.00\n"), 0o644))

	d := NewDetector(nil)
	profile, err := d.Detect(context.Background(), entity.RawDocument{SourcePath: path, FileExt: "csv"})
	require.NoError(t, err)
	assert.Equal(t, constants.Tabular, profile.Kind)
	assert.Empty(t, profile.ColumnHeaders, "numeric cell disqualifies the header row")
}

func TestDetectXLSXMultiSheet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Vendor", "Invoice No", "Total"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Acme Corp", "INV-001", 108.0}))
	_, err := f.NewSheet("Q2")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Q2", "A1", &[]any{"Globex", "INV-002", 250.0}))
	require.NoError(t, f.SaveAs(path))

	d := NewDetector(nil)
	profile, err := d.Detect(context.Background(), entity.RawDocument{SourcePath: path, FileExt: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, constants.Tabular, profile.Kind)
	assert.Len(t, profile.SheetNames, 2, "multi-sheet workbook is one document")
	assert.Equal(t, []string{"Vendor", "Invoice No", "Total"}, profile.ColumnHeaders)
}

func TestDetectUnsupportedExtension(t *testing.T) {
	d := NewDetector(nil)
	_, err := d.Detect(context.Background(), entity.RawDocument{SourcePath: "/tmp/x.docx", FileExt: "docx"})
	require.Error(t, err)
	assert.True(t, common.IsFormatError(err))
}

func TestDetectCorruptImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	d := NewDetector(nil)
	_, err := d.Detect(context.Background(), entity.RawDocument{SourcePath: path, FileExt: "png"})
	require.Error(t, err)
	assert.True(t, common.IsFormatError(err))
}
