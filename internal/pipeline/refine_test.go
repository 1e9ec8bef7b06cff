package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/validate"
)

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

// scriptedEngine returns one canned record per attempt, recording the
// contexts it was called with.
type scriptedEngine struct {
	records []entity.StructuredRecord
	errs    []error
	calls   []entity.ExtractionContext
}

func (s *scriptedEngine) Extract(_ context.Context, ec entity.ExtractionContext) (entity.StructuredRecord, error) {
	i := len(s.calls)
	s.calls = append(s.calls, ec)
	if i < len(s.errs) && s.errs[i] != nil {
		return entity.StructuredRecord{}, s.errs[i]
	}
	if i >= len(s.records) {
		i = len(s.records) - 1
	}
	return s.records[i], nil
}

func testValidator() *validate.Validator {
	return validate.NewWithClock(
		validate.Config{Tolerance: 0.01, MaxTotal: 1_000_000, GraceWindow: 72 * time.Hour},
		func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) },
	)
}

func goodRecord() entity.StructuredRecord {
	return entity.StructuredRecord{
		VendorName:    strp("Acme Corp"),
		InvoiceNumber: strp("INV-2026-001"),
		InvoiceDate:   strp("2026-03-01"),
		Subtotal:      f64p(100),
		TaxAmount:     f64p(8),
		TotalAmount:   f64p(108),
		Currency:      strp("USD"),
	}
}

func badRecord() entity.StructuredRecord {
	rec := goodRecord()
	rec.TotalAmount = f64p(110) // arithmetic failure
	return rec
}

func TestRefinementAcceptsFirstAttempt(t *testing.T) {
	eng := &scriptedEngine{records: []entity.StructuredRecord{goodRecord()}}
	c := NewRefinementController(eng, testValidator(), 1, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Validation.HasFailure())
	assert.Len(t, eng.calls, 1)
}

func TestRefinementRetriesOnceWithHint(t *testing.T) {
	eng := &scriptedEngine{records: []entity.StructuredRecord{badRecord(), goodRecord()}}
	c := NewRefinementController(eng, testValidator(), 1, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	assert.True(t, attempts[0].Validation.HasFailure())
	assert.False(t, attempts[1].Validation.HasFailure())
	assert.Equal(t, 0, attempts[0].Index)
	assert.Equal(t, 1, attempts[1].Index)

	require.Len(t, eng.calls, 2)
	assert.Empty(t, eng.calls[0].RefinementHint)
	assert.Contains(t, eng.calls[1].RefinementHint, "does not match total")
	assert.Equal(t, 1, eng.calls[1].Attempt)
}

func TestRefinementExhaustsBudget(t *testing.T) {
	eng := &scriptedEngine{records: []entity.StructuredRecord{badRecord()}}
	c := NewRefinementController(eng, testValidator(), 1, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.NoError(t, err)
	require.Len(t, attempts, 2, "maxRetries=1 means at most two engine calls")
	assert.True(t, attempts[1].Validation.HasFailure(), "last attempt stands even when failing")
}

func TestRefinementZeroRetries(t *testing.T) {
	eng := &scriptedEngine{records: []entity.StructuredRecord{badRecord()}}
	c := NewRefinementController(eng, testValidator(), 0, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestRefinementEngineErrorAborts(t *testing.T) {
	eng := &scriptedEngine{
		records: []entity.StructuredRecord{badRecord()},
		errs:    []error{nil, errors.New("model unavailable")},
	}
	c := NewRefinementController(eng, testValidator(), 2, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.Error(t, err)
	assert.Len(t, attempts, 1, "completed attempts survive the abort")
}

func TestRefinementFinalizesConfidence(t *testing.T) {
	eng := &scriptedEngine{records: []entity.StructuredRecord{goodRecord()}}
	c := NewRefinementController(eng, testValidator(), 1, nil)

	attempts, err := c.Run(context.Background(), entity.ExtractionContext{RawText: "invoice"})
	require.NoError(t, err)

	rec := attempts[0].Record
	assert.InDelta(t, 0.95, rec.FieldConfidence[entity.FieldVendorName], 1e-9)
	assert.Greater(t, rec.DocumentConfidence, 0.9)
	assert.Zero(t, rec.FieldConfidence[entity.FieldDueDate], "null field confidence is exactly zero")
}
