package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
)

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "ivp-pp-*")
	if err != nil {
		return Result{}, common.NewExtractionError("ocr", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("remove temp dir", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, common.NewExtractionError("ocr", fmt.Errorf("pdftoppm: %w", err))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{}, common.NewExtractionError("ocr", fmt.Errorf("pdftoppm produced no images"))
	}

	var b strings.Builder
	var warns []string
	words := make(map[string]float64)
	wordPages := make(map[string]int)
	var confSum float64
	var confN int

	for _, img := range matches {
		res, perr := e.tesseract(ctx, img)
		if perr != nil {
			warns = append(warns, perr.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(res.Text)
		// same running mean as within a page, one sample per page
		for w, c := range res.WordConfidence {
			wordPages[w]++
			words[w] += (c - words[w]) / float64(wordPages[w])
		}
		if res.MeanConfidence > 0 {
			confSum += res.MeanConfidence
			confN++
		}
		warns = append(warns, res.Warnings...)
	}

	out := Result{
		Text:           b.String(),
		Pages:          len(matches),
		WordConfidence: words,
		Warnings:       warns,
	}
	if confN > 0 {
		out.MeanConfidence = confSum / float64(confN)
	}
	return out, nil
}
