package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

func TestHintConfidenceCoversValueTokens(t *testing.T) {
	hints := map[string]float64{
		"acme": 0.90,
		"corp": 0.80,
	}
	c, ok := hintConfidence("Acme Corp", hints)
	require.True(t, ok)
	assert.InDelta(t, 0.85, c, 1e-9)
}

func TestHintConfidencePartialCoverage(t *testing.T) {
	hints := map[string]float64{"acme": 0.90}
	c, ok := hintConfidence("Acme Holdings Ltd", hints)
	require.True(t, ok, "partial coverage still yields a hint")
	assert.InDelta(t, 0.90, c, 1e-9)

	_, ok = hintConfidence("Globex", hints)
	assert.False(t, ok)
}

func TestFinalizeConfidenceFallbacks(t *testing.T) {
	profile := entity.FormatProfile{Kind: constants.PDFText}

	t.Run("passed validation", func(t *testing.T) {
		rec := entity.StructuredRecord{VendorName: strp("Acme")}
		FinalizeConfidence(&rec, profile, true)
		assert.InDelta(t, 0.95, rec.FieldConfidence[entity.FieldVendorName], 1e-9)
	})

	t.Run("failed validation", func(t *testing.T) {
		rec := entity.StructuredRecord{VendorName: strp("Acme")}
		FinalizeConfidence(&rec, profile, false)
		assert.InDelta(t, 0.60, rec.FieldConfidence[entity.FieldVendorName], 1e-9)
	})

	t.Run("null fields pinned to zero", func(t *testing.T) {
		rec := entity.StructuredRecord{VendorName: strp("Acme")}
		FinalizeConfidence(&rec, profile, true)
		assert.Zero(t, rec.FieldConfidence[entity.FieldTotalAmount])
		assert.Zero(t, rec.FieldConfidence[entity.FieldInvoiceDate])
	})
}

func TestFinalizeConfidenceKeepsOCRHints(t *testing.T) {
	rec := entity.StructuredRecord{
		VendorName:      strp("Acme"),
		FieldConfidence: map[string]float64{entity.FieldVendorName: 0.72},
	}
	FinalizeConfidence(&rec, entity.FormatProfile{Kind: constants.PDFScanned}, true)
	assert.InDelta(t, 0.72, rec.FieldConfidence[entity.FieldVendorName], 1e-9,
		"hint confidence wins over the pass fallback")
}

func TestFinalizeConfidenceKeepsZeroHint(t *testing.T) {
	rec := entity.StructuredRecord{
		VendorName:      strp("Acme"),
		FieldConfidence: map[string]float64{entity.FieldVendorName: 0.0},
	}
	FinalizeConfidence(&rec, entity.FormatProfile{Kind: constants.PDFScanned}, true)
	assert.Zero(t, rec.FieldConfidence[entity.FieldVendorName],
		"a zero-confidence OCR hint is not promoted to the pass fallback")
}

func TestFinalizeConfidenceTabularBoost(t *testing.T) {
	profile := entity.FormatProfile{
		Kind:          constants.Tabular,
		ColumnHeaders: []string{"Vendor", "Invoice No", "Total"},
	}
	rec := entity.StructuredRecord{
		VendorName:      strp("Acme"),
		TotalAmount:     f64p(99.0),
		FieldConfidence: map[string]float64{entity.FieldVendorName: 0.98},
	}
	FinalizeConfidence(&rec, profile, true)

	assert.InDelta(t, 1.0, rec.FieldConfidence[entity.FieldVendorName], 1e-9, "boost clamps at 1.0")
	assert.InDelta(t, 1.0, rec.FieldConfidence[entity.FieldTotalAmount], 1e-9, "0.95 fallback + 0.05 boost")
}

func TestFinalizeConfidenceDocumentMean(t *testing.T) {
	rec := entity.StructuredRecord{
		VendorName:  strp("Acme"),
		TotalAmount: f64p(10),
		FieldConfidence: map[string]float64{
			entity.FieldVendorName:  0.80,
			entity.FieldTotalAmount: 0.60,
		},
	}
	FinalizeConfidence(&rec, entity.FormatProfile{Kind: constants.PDFScanned}, true)
	assert.InDelta(t, 0.70, rec.DocumentConfidence, 1e-9)

	empty := entity.StructuredRecord{}
	FinalizeConfidence(&empty, entity.FormatProfile{Kind: constants.PDFText}, false)
	assert.Zero(t, empty.DocumentConfidence, "all-null record scores exactly zero")
}

type stubClient struct {
	response string
	err      error
}

func (s stubClient) Complete(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func TestEngineExtractMalformedResponseYieldsAllNull(t *testing.T) {
	e := NewEngine(stubClient{response: "sorry, no invoice here"}, Config{}, nil)

	rec, err := e.Extract(context.Background(), entity.ExtractionContext{RawText: "whatever"})
	require.NoError(t, err)
	assert.True(t, rec.Empty())
	for _, name := range entity.FieldNames {
		assert.Zero(t, rec.FieldConfidence[name])
	}
}

func TestEngineExtractTransportError(t *testing.T) {
	e := NewEngine(stubClient{err: errors.New("connection refused")}, Config{}, nil)

	_, err := e.Extract(context.Background(), entity.ExtractionContext{RawText: "whatever"})
	require.Error(t, err)
}

func TestEngineExtractAppliesHints(t *testing.T) {
	e := NewEngine(stubClient{response: `{"vendor_name": "Acme Corp", "total_amount": 108.0}`}, Config{}, nil)

	rec, err := e.Extract(context.Background(), entity.ExtractionContext{
		RawText: "Acme Corp invoice",
		WordConfidence: map[string]float64{
			"acme": 0.90,
			"corp": 0.70,
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.80, rec.FieldConfidence[entity.FieldVendorName], 1e-9)
	_, hasTotal := rec.FieldConfidence[entity.FieldTotalAmount]
	assert.False(t, hasTotal, "uncovered field left for FinalizeConfidence")
}
