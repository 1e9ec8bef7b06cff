package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/ocr"
)

// Extractor dispatches on the detected format kind: embedded text for
// pdf-text (fast path, high trust), OCR for scans and images, and a
// column-aligned text rendering for spreadsheets.
type Extractor struct {
	ocr    *ocr.Extractor
	logger *slog.Logger
}

func NewExtractor(ocrx *ocr.Extractor, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocrx, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc entity.RawDocument, profile entity.FormatProfile) (entity.ExtractionContext, error) {
	ec := entity.ExtractionContext{Profile: profile}

	switch profile.Kind {
	case constants.PDFText:
		text, err := e.pdfText(doc.SourcePath)
		if err != nil {
			return ec, common.NewExtractionError("content", err)
		}
		ec.RawText = text

	case constants.PDFScanned:
		res, err := e.ocr.ExtractScannedPDF(ctx, doc.SourcePath)
		if err != nil {
			return ec, err
		}
		ec.RawText = res.Text
		ec.WordConfidence = res.WordConfidence
		e.logger.Debug("ocr pdf done", "path", doc.SourcePath, "pages", res.Pages, "mean_conf", res.MeanConfidence)

	case constants.Image:
		res, err := e.ocr.ExtractImage(ctx, doc.SourcePath, profile.ImageWidth, profile.ImageHeight)
		if err != nil {
			return ec, err
		}
		ec.RawText = res.Text
		ec.WordConfidence = res.WordConfidence
		e.logger.Debug("ocr image done", "path", doc.SourcePath, "mean_conf", res.MeanConfidence)

	case constants.Tabular:
		text, err := RenderTabular(doc.SourcePath, doc.FileExt)
		if err != nil {
			return ec, common.NewExtractionError("content", err)
		}
		ec.RawText = text

	default:
		return ec, common.NewExtractionError("content", fmt.Errorf("unknown format kind: %q", profile.Kind))
	}

	return ec, nil
}

func (e *Extractor) pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("close pdf", "path", path, "error", cerr)
		}
	}()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
