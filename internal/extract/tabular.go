package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/davidoyelade/invoice-pipeline/constants"
)

// RenderTabular renders a spreadsheet as column-aligned text, one marker per
// sheet. Multi-sheet files are deliberately NOT split into separate documents
// here: one file stays one extraction call, so the content hash and the
// record keep a 1:1 relationship. Sheet-to-record splitting, if ever wanted,
// belongs to the orchestrator.
func RenderTabular(path, ext string) (string, error) {
	if constants.NormalizeExt(ext) == "csv" {
		rows, err := readCSV(path)
		if err != nil {
			return "", err
		}
		return renderSheet("csv", rows), nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, rerr := f.GetRows(sheet)
		if rerr != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, rerr)
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderSheet(sheet, rows))
	}
	return b.String(), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, rerr := rd.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read csv: %w", rerr)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// renderSheet lays the rows out with padded columns so the model sees the
// table structure the way a human would.
func renderSheet(name string, rows [][]string) string {
	widths := columnWidths(rows)

	var b strings.Builder
	fmt.Fprintf(&b, "=== sheet: %s ===\n", name)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if pad := widths[i] - len([]rune(cell)); pad > 0 && i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}
