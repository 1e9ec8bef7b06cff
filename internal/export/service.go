package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// Service produces XLSX bytes summarizing a finished batch: one row per
// document with its extraction outcome and validation counts.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchReportXLSX renders the batch as a single-sheet workbook.
func (s *Service) BatchReportXLSX(job *entity.BatchJob) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Batch"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// excelize starts every workbook with Sheet1
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"File",
		"Status",
		"Vendor",
		"Invoice No",
		"Invoice Date",
		"Total",
		"Currency",
		"Confidence",
		"Attempts",
		"Warnings",
		"Failures",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, o := range job.Outcomes {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, o.Document.SourcePath)
		write(2, string(o.Status))

		if o.Record != nil {
			write(3, o.Record.FieldText(entity.FieldVendorName))
			write(4, o.Record.FieldText(entity.FieldInvoiceNumber))
			write(5, o.Record.FieldText(entity.FieldInvoiceDate))
			write(6, o.Record.FieldText(entity.FieldTotalAmount))
			write(7, o.Record.FieldText(entity.FieldCurrency))
			write(8, fmt.Sprintf("%.2f", o.Record.DocumentConfidence))
		}
		write(9, len(o.Attempts))

		if o.Validation != nil {
			_, warn, fail := o.Validation.Counts()
			write(10, warn)
			write(11, fail)
		}
		if o.Duplicate != nil && o.Err == "" {
			write(12, "duplicate of "+o.Duplicate.DocumentID.String())
		} else {
			write(12, truncate(o.Err, 140))
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 48) // path
	_ = f.SetColWidth(sheet, "B", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 28) // vendor
	_ = f.SetColWidth(sheet, "D", "E", 16)
	_ = f.SetColWidth(sheet, "F", "H", 12)
	_ = f.SetColWidth(sheet, "L", "L", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", job.ID.String(),
		"rows", len(job.Outcomes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
