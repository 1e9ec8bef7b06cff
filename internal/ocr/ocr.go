package ocr

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
)

// Config holds OCR engine settings. Zero values fall back to sane defaults.
type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Magick    string // binary name or absolute path; if empty -> "magick"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	MaxParallel   int           // concurrent tesseract/pdftoppm subprocesses, default 4
	MaxImageBytes int64         // estimated decoded size ceiling before downscale
	MaxDimension  int           // max width/height after downscale, default 3000
	Timeout       time.Duration // per extraction call, default 2m
}

// Result is one OCR pass: recognized text plus per-word confidence in [0,1].
type Result struct {
	Text           string
	Pages          int
	WordConfidence map[string]float64
	MeanConfidence float64
	Warnings       []string
	Duration       time.Duration
}

// Extractor shells out to tesseract (and pdftoppm for scanned PDFs). The
// subprocess fan-out is bounded by its own gate so CPU-bound decoding never
// starves the batch scheduler driving model calls.
type Extractor struct {
	cfg    Config
	runner Runner
	gate   *semaphore.Weighted
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Magick == "" {
		cfg.Magick = "magick"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 3000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Extractor{
		cfg:    cfg,
		runner: newExecRunner(logger),
		gate:   semaphore.NewWeighted(int64(cfg.MaxParallel)),
		logger: logger,
	}
}

// ExtractImage OCRs a single raster image, downscaling first if the decoded
// size estimate exceeds the configured ceiling.
func (e *Extractor) ExtractImage(ctx context.Context, path string, width, height int) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.gate.Acquire(ctx, 1); err != nil {
		return Result{}, common.NewExtractionError("ocr", err)
	}
	defer e.gate.Release(1)

	out, warns, cleanup, err := e.downscaleIfNeeded(ctx, path, width, height)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return Result{Warnings: warns}, common.NewExtractionError("ocr", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	path = out

	res, err := e.tesseract(ctx, path)
	if err != nil {
		return res, err
	}
	res.Pages = 1
	res.Warnings = append(res.Warnings, warns...)
	res.Duration = time.Since(start)
	return res, nil
}

// ExtractScannedPDF rasterizes each page and OCRs them in order.
func (e *Extractor) ExtractScannedPDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.gate.Acquire(ctx, 1); err != nil {
		return Result{}, common.NewExtractionError("ocr", err)
	}
	defer e.gate.Release(1)

	res, err := e.pdfToOCR(ctx, path)
	res.Duration = time.Since(start)
	return res, err
}
