package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
)

// tesseract runs one TSV-mode pass and derives both the text and the per-word
// confidence map from it, so text and scores always describe the same run.
func (e *Extractor) tesseract(ctx context.Context, path string) (Result, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, common.NewExtractionError("ocr", fmt.Errorf("tesseract: %w", err))
	}

	text, words, mean := parseTSV(string(out))
	return Result{
		Text:           Normalize(text),
		WordConfidence: words,
		MeanConfidence: mean,
	}, nil
}

// parseTSV reads tesseract's TSV output. Columns:
// level page block par line word left top width height conf text.
// Word rows carry conf 0..100; structural rows carry -1 and are skipped.
func parseTSV(tsv string) (text string, words map[string]float64, mean float64) {
	words = make(map[string]float64)
	counts := make(map[string]int)

	var b strings.Builder
	var sum float64
	var n int
	lastLine := ""

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		// page/block/par/line identify the line; break text accordingly
		lineKey := strings.Join(cols[1:5], ":")
		if lastLine != "" && lineKey != lastLine {
			b.WriteString("\n")
		} else if b.Len() > 0 && lineKey == lastLine {
			b.WriteString(" ")
		}
		b.WriteString(word)
		lastLine = lineKey

		c := conf / 100.0
		// keys are normalized the way downstream consumers tokenize values
		key := strings.Trim(strings.ToLower(word), ".,;:()[]$£€¥\"'")
		if key != "" {
			// repeated words: running mean
			counts[key]++
			words[key] += (c - words[key]) / float64(counts[key])
		}
		sum += c
		n++
	}
	if n > 0 {
		mean = sum / float64(n)
	}
	return b.String(), words, mean
}
