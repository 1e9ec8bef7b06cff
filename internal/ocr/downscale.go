package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// estimatedDecodedBytes approximates the in-memory cost of decoding the image
// at 4 bytes per pixel (RGBA).
func estimatedDecodedBytes(width, height int) int64 {
	return int64(width) * int64(height) * 4
}

// downscaleIfNeeded resizes the image to MaxDimension (preserving aspect
// ratio) when the decoded-size estimate exceeds the configured ceiling.
// Returns the path to feed tesseract and a cleanup func for the temp copy.
func (e *Extractor) downscaleIfNeeded(ctx context.Context, in string, width, height int) (string, []string, func(), error) {
	if e.cfg.MaxImageBytes <= 0 || width <= 0 || height <= 0 {
		return in, nil, nil, nil
	}
	if estimatedDecodedBytes(width, height) <= e.cfg.MaxImageBytes {
		return in, nil, nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "ivp-img-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "scaled.png")

	// magick <in> -resize NxN> <out>  ('>' shrinks only, keeps aspect ratio)
	geom := fmt.Sprintf("%dx%d>", e.cfg.MaxDimension, e.cfg.MaxDimension)
	if _, errb, rerr := e.runner.Run(ctx, e.cfg.Magick, in, "-resize", geom, out); rerr != nil {
		return "", []string{string(errb)}, cleanup, fmt.Errorf("magick resize: %w", rerr)
	}
	if _, serr := os.Stat(out); serr != nil {
		return "", nil, cleanup, fmt.Errorf("downscale produced no output: %v", serr)
	}

	warn := fmt.Sprintf("downscaled %dx%d image to fit %d px before OCR", width, height, e.cfg.MaxDimension)
	return out, []string{warn}, cleanup, nil
}
