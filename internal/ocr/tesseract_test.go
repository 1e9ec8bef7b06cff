package ocr

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(page, block, par, line int, conf, word string) string {
	return strings.Join([]string{
		"5",
		itoa(page), itoa(block), itoa(par), itoa(line),
		"1", "10", "10", "50", "20",
		conf, word,
	}, "\t")
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestParseTSVWordsAndMean(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		tsvRow(1, 1, 1, 1, "90", "Acme"),
		tsvRow(1, 1, 1, 1, "80", "Corp"),
		tsvRow(1, 1, 1, 2, "70", "Invoice"),
		"1\t1\t1\t1\t2\t0\t0\t0\t0\t0\t-1\t", // structural row, skipped
	}, "\n")

	text, words, mean := parseTSV(tsv)

	assert.Equal(t, "Acme Corp\nInvoice", text, "line boundaries become newlines")
	assert.InDelta(t, 0.90, words["acme"], 1e-9, "keys are lowercased")
	assert.InDelta(t, 0.80, words["corp"], 1e-9)
	assert.InDelta(t, 0.80, mean, 1e-9)
}

func TestParseTSVRepeatedWordRunningMean(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		tsvRow(1, 1, 1, 1, "100", "Total"),
		tsvRow(1, 1, 1, 2, "50", "Total"),
	}, "\n")

	_, words, _ := parseTSV(tsv)
	assert.InDelta(t, 0.75, words["total"], 1e-9)
}

func TestParseTSVEmpty(t *testing.T) {
	text, words, mean := parseTSV(tsvHeader + "\n")
	assert.Empty(t, text)
	assert.Empty(t, words)
	assert.Zero(t, mean)
}

func TestNormalizeStripsNoise(t *testing.T) {
	in := "Acme   Corp |_| invoice\n\n\n\n\nTotal:  108.00"
	out := Normalize(in)
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "   ")
	assert.NotContains(t, out, "\n\n\n")
}

func TestEstimatedDecodedBytes(t *testing.T) {
	assert.Equal(t, int64(4_000_000), estimatedDecodedBytes(1000, 1000))
}

// fakeRunner records invocations and writes the resize output file so the
// downscale path can be exercised without ImageMagick.
type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name == "magick" {
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("png"), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestDownscaleDecision(t *testing.T) {
	runner := &fakeRunner{}
	e := NewExtractor(Config{MaxImageBytes: 4_000_000, MaxDimension: 2000}, nil)
	e.runner = runner

	t.Run("small image passes through", func(t *testing.T) {
		out, warns, cleanup, err := e.downscaleIfNeeded(context.Background(), "/in/small.png", 800, 600)
		require.NoError(t, err)
		assert.Equal(t, "/in/small.png", out)
		assert.Empty(t, warns)
		assert.Nil(t, cleanup)
		assert.Empty(t, runner.calls)
	})

	t.Run("oversized image is resized", func(t *testing.T) {
		out, warns, cleanup, err := e.downscaleIfNeeded(context.Background(), "/in/huge.png", 5000, 4000)
		require.NoError(t, err)
		require.NotNil(t, cleanup)
		defer cleanup()

		assert.NotEqual(t, "/in/huge.png", out)
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "magick", runner.calls[0][0])
		assert.Contains(t, runner.calls[0], "2000x2000>")
		require.Len(t, warns, 1)
		assert.Contains(t, warns[0], "downscaled")
	})

	t.Run("unknown dimensions skip the estimate", func(t *testing.T) {
		out, _, cleanup, err := e.downscaleIfNeeded(context.Background(), "/in/unknown.png", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "/in/unknown.png", out)
		assert.Nil(t, cleanup)
	})
}
