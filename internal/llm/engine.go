package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidoyelade/invoice-pipeline/internal/common"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// Config holds engine behavior. Thresholds come from the pipeline config so
// tests can vary them per instance.
type Config struct {
	DefaultCurrency string
	Timeout         time.Duration // per model call
}

// Engine is the field extraction engine: prompt building, one model call,
// untrusted-response parsing, and preliminary confidence from OCR hints.
// Validation-dependent confidence is finalized by FinalizeConfidence after
// the validator has run.
type Engine struct {
	client ModelClient
	cfg    Config
	logger *slog.Logger
}

func NewEngine(client ModelClient, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Engine{client: client, cfg: cfg, logger: logger}
}

// Extract runs one extraction attempt. Transport-level failures (HTTP error,
// rate limit, timeout) return an ExtractionError; a malformed or empty model
// response returns an all-null record and no error, leaving the validator to
// flag it for review.
func (e *Engine) Extract(ctx context.Context, ec entity.ExtractionContext) (entity.StructuredRecord, error) {
	start := time.Now()

	sys := BuildSystemPrompt(ec.Profile, e.cfg.DefaultCurrency)
	user := BuildUserPrompt(ec)

	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	raw, err := e.client.Complete(cctx, sys, user)
	if err != nil {
		e.logger.Error("llm.extract.call_failed",
			"attempt", ec.Attempt, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return entity.StructuredRecord{}, common.NewExtractionError("model", err)
	}

	fields, ok := ParseResponse(raw, e.logger)
	if !ok {
		e.logger.Warn("llm.extract.unusable_response",
			"attempt", ec.Attempt, "raw_len", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return emptyRecord(), nil
	}

	rec := toRecord(fields)
	applyHintConfidence(&rec, ec.WordConfidence)

	e.logger.Info("llm.extract.ok",
		"attempt", ec.Attempt,
		"vendor", rec.FieldText(entity.FieldVendorName),
		"invoice_number", rec.FieldText(entity.FieldInvoiceNumber),
		"total", rec.FieldText(entity.FieldTotalAmount),
		"elapsed_ms", time.Since(start).Milliseconds())
	return rec, nil
}

func toRecord(f InvoiceFields) entity.StructuredRecord {
	rec := entity.StructuredRecord{
		VendorName:      f.VendorName,
		InvoiceNumber:   f.InvoiceNumber,
		InvoiceDate:     f.InvoiceDate,
		DueDate:         f.DueDate,
		Subtotal:        f.Subtotal,
		TaxAmount:       f.TaxAmount,
		TaxRate:         f.TaxRate,
		TotalAmount:     f.TotalAmount,
		Currency:        f.Currency,
		FieldConfidence: make(map[string]float64, len(entity.FieldNames)),
	}
	for _, it := range f.LineItems {
		rec.LineItems = append(rec.LineItems, entity.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		})
	}
	return rec
}

func emptyRecord() entity.StructuredRecord {
	rec := entity.StructuredRecord{FieldConfidence: make(map[string]float64, len(entity.FieldNames))}
	for _, name := range entity.FieldNames {
		rec.FieldConfidence[name] = 0.0
	}
	return rec
}
