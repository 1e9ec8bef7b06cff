package detect

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// Detector classifies a RawDocument into a FormatProfile. It reads file bytes
// but has no other side effects; unreadable or corrupt input is reported as a
// FormatError.
type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect inspects the document and produces its FormatProfile. The extension
// picks the candidate family; PDFs are refined by probing the embedded text
// layer, tabular files are profiled per sheet.
func (d *Detector) Detect(ctx context.Context, doc entity.RawDocument) (entity.FormatProfile, error) {
	_ = ctx
	switch constants.MapExtToFamily(doc.FileExt) {
	case constants.FamilyPDF:
		return d.detectPDF(doc)
	case constants.FamilyImage:
		return d.detectImage(doc)
	case constants.FamilyTabular:
		return d.detectTabular(doc)
	default:
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, fmt.Errorf("unsupported extension: %q", doc.FileExt))
	}
}

// detectPDF distinguishes pdf-text from pdf-scanned: a text layer shorter than
// the character threshold means the pages are images and need OCR.
func (d *Detector) detectPDF(doc entity.RawDocument) (entity.FormatProfile, error) {
	f, r, err := pdf.Open(doc.SourcePath)
	if err != nil {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, fmt.Errorf("open pdf: %w", err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.logger.Warn("close pdf", "path", doc.SourcePath, "error", cerr)
		}
	}()

	pages := r.NumPage()
	chars := 0
	if reader, terr := r.GetPlainText(); terr == nil {
		var b strings.Builder
		// The threshold is small; cap the copy so huge text layers don't cost.
		if _, cerr := io.CopyN(&b, reader, 4*constants.TextLayerThreshold); cerr != nil && cerr != io.EOF {
			d.logger.Warn("pdf text probe", "path", doc.SourcePath, "error", cerr)
		}
		chars = len(strings.TrimSpace(b.String()))
	}

	profile := entity.FormatProfile{
		Kind:         constants.PDFScanned,
		PageCount:    pages,
		HasTextLayer: chars >= constants.TextLayerThreshold,
	}
	if profile.HasTextLayer {
		profile.Kind = constants.PDFText
	}
	d.logger.Debug("pdf detected", "path", doc.SourcePath, "kind", profile.Kind, "pages", pages, "text_chars", chars)
	return profile, nil
}

func (d *Detector) detectImage(doc entity.RawDocument) (entity.FormatProfile, error) {
	f, err := os.Open(doc.SourcePath)
	if err != nil {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.logger.Warn("close image", "path", doc.SourcePath, "error", cerr)
		}
	}()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, fmt.Errorf("decode image header: %w", err))
	}
	return entity.FormatProfile{
		Kind:        constants.Image,
		PageCount:   1,
		ImageWidth:  cfg.Width,
		ImageHeight: cfg.Height,
	}, nil
}

func (d *Detector) detectTabular(doc entity.RawDocument) (entity.FormatProfile, error) {
	if constants.NormalizeExt(doc.FileExt) == "csv" {
		return d.detectCSV(doc)
	}

	f, err := excelize.OpenFile(doc.SourcePath)
	if err != nil {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, fmt.Errorf("open workbook: %w", err))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.logger.Warn("close workbook", "path", doc.SourcePath, "error", cerr)
		}
	}()

	profile := entity.FormatProfile{Kind: constants.Tabular, SheetNames: f.GetSheetList()}
	for _, sheet := range profile.SheetNames {
		rows, rerr := f.GetRows(sheet)
		if rerr != nil || len(rows) == 0 {
			continue
		}
		if IsHeaderRow(rows[0]) {
			profile.ColumnHeaders = rows[0]
			break
		}
	}
	return profile, nil
}

func (d *Detector) detectCSV(doc entity.RawDocument) (entity.FormatProfile, error) {
	f, err := os.Open(doc.SourcePath)
	if err != nil {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.logger.Warn("close csv", "path", doc.SourcePath, "error", cerr)
		}
	}()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	first, err := rd.Read()
	if err != nil && err != io.EOF {
		return entity.FormatProfile{}, common.NewFormatError(doc.SourcePath, fmt.Errorf("read csv: %w", err))
	}

	profile := entity.FormatProfile{Kind: constants.Tabular, SheetNames: []string{"csv"}}
	if IsHeaderRow(first) {
		profile.ColumnHeaders = first
	}
	return profile, nil
}

// IsHeaderRow reports whether the first row of a sheet looks like a header:
// every cell non-empty and non-numeric.
func IsHeaderRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			return false
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(c, ",", ""), 64); err == nil {
			return false
		}
	}
	return true
}
