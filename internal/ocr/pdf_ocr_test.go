package ocr

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPDFRunner fakes pdftoppm (writes one png per configured page) and
// tesseract (returns that page's TSV).
type scriptedPDFRunner struct {
	pageConf []string
}

func (r *scriptedPDFRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := range r.pageConf {
			out := fmt.Sprintf("%s-%d.png", prefix, i+1)
			if err := os.WriteFile(out, []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		img := args[0]
		page := int(img[len(img)-5] - '0') // .../page-N.png
		tsv := tsvHeader + "\n" + tsvRow(1, 1, 1, 1, r.pageConf[page-1], "Total") + "\n"
		return []byte(tsv), nil, nil
	}
	return nil, nil, nil
}

func TestScannedPDFWordConfidenceMergesAcrossPages(t *testing.T) {
	runner := &scriptedPDFRunner{pageConf: []string{"90", "60", "60"}}
	e := NewExtractor(Config{}, nil)
	e.runner = runner

	res, err := e.pdfToOCR(context.Background(), "/in/scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Pages)
	assert.InDelta(t, 0.70, res.WordConfidence["total"], 1e-9,
		"every page weighs the same in the merged word confidence")
	assert.InDelta(t, 0.70, res.MeanConfidence, 1e-9)
}

func TestScannedPDFNoPagesIsAnError(t *testing.T) {
	runner := &scriptedPDFRunner{}
	e := NewExtractor(Config{}, nil)
	e.runner = runner

	_, err := e.pdfToOCR(context.Background(), "/in/empty.pdf")
	require.Error(t, err)
}
