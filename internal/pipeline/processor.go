package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/extract"
	"github.com/davidoyelade/invoice-pipeline/internal/repository"
)

// FormatDetector classifies a document before content extraction.
type FormatDetector interface {
	Detect(ctx context.Context, doc entity.RawDocument) (entity.FormatProfile, error)
}

// Processor runs one document through the whole pipeline: dedup check, format
// detection, content extraction, the refinement loop, and persistence. Every
// path resolves to a terminal DocumentOutcome; errors are folded into the
// outcome rather than propagated, so one bad document never disturbs its
// batch.
type Processor struct {
	logger     *slog.Logger
	detector   FormatDetector
	extractor  extract.ContentExtractor
	controller *RefinementController
	store      repository.RecordStore
}

func NewProcessor(
	logger *slog.Logger,
	detector FormatDetector,
	extractor extract.ContentExtractor,
	controller *RefinementController,
	store repository.RecordStore,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		detector:   detector,
		extractor:  extractor,
		controller: controller,
		store:      store,
	}
}

// Process resolves one document to a terminal outcome. With force=false a
// content-hash hit short-circuits to DUPLICATE, carrying the reference to the
// persisted record; with force=true the document is reprocessed and the
// duplicate reference rides along on the outcome.
func (p *Processor) Process(ctx context.Context, doc entity.RawDocument, force bool) entity.DocumentOutcome {
	start := time.Now()
	out := entity.DocumentOutcome{Document: doc, Status: constants.StatusDiscovered}

	dup, err := p.store.Lookup(ctx, doc.ContentHash)
	if err != nil {
		p.logger.Error("pipeline.process.dedup_failed",
			"document_id", doc.ID, "path", doc.SourcePath, "error", err)
		return p.fail(ctx, out, err)
	}
	if dup != nil {
		out.Duplicate = dup
		if !force {
			out.Status = constants.StatusDuplicate
			p.logger.Info("pipeline.process.duplicate",
				"document_id", doc.ID, "path", doc.SourcePath,
				"original_document_id", dup.DocumentID, "hash", dup.HashHex)
			p.persist(ctx, &out)
			return out
		}
		p.logger.Info("pipeline.process.duplicate_forced",
			"document_id", doc.ID, "original_document_id", dup.DocumentID)
	}
	p.step(&out, constants.StatusDeduplicated)

	profile, err := p.detector.Detect(ctx, doc)
	if err != nil {
		p.logger.Error("pipeline.process.detect_failed",
			"document_id", doc.ID, "path", doc.SourcePath, "error", err)
		return p.fail(ctx, out, err)
	}
	p.step(&out, constants.StatusFormatDetected)

	ec, err := p.extractor.Extract(ctx, doc, profile)
	if err != nil {
		p.logger.Error("pipeline.process.extract_failed",
			"document_id", doc.ID, "path", doc.SourcePath,
			"kind", profile.Kind, "error", err)
		return p.fail(ctx, out, err)
	}
	p.step(&out, constants.StatusExtracted)
	out.RawText = ec.RawText

	attempts, err := p.controller.Run(ctx, ec)
	if err != nil {
		out.Attempts = attempts
		p.logger.Error("pipeline.process.refine_failed",
			"document_id", doc.ID, "attempts", len(attempts), "error", err)
		return p.fail(ctx, out, err)
	}

	p.step(&out, constants.StatusValidated)
	last := attempts[len(attempts)-1]
	out.Attempts = attempts
	out.Record = &last.Record
	out.Validation = &last.Validation
	p.step(&out, constants.StatusPersisted)

	p.persist(ctx, &out)

	pass, warn, fail := last.Validation.Counts()
	p.logger.Info("pipeline.process.done",
		"document_id", doc.ID,
		"path", doc.SourcePath,
		"status", out.Status,
		"attempts", len(attempts),
		"pass", pass, "warn", warn, "fail", fail,
		"document_confidence", last.Record.DocumentConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// step advances the in-memory state machine. Only the terminal status is
// persisted; the intermediate transitions surface in the logs.
func (p *Processor) step(out *entity.DocumentOutcome, s constants.DocumentStatus) {
	out.Status = s
	p.logger.Debug("pipeline.process.state",
		"document_id", out.Document.ID, "status", s)
}

func (p *Processor) fail(ctx context.Context, out entity.DocumentOutcome, err error) entity.DocumentOutcome {
	out.Status = constants.StatusFailed
	out.Err = err.Error()
	p.persist(ctx, &out)
	return out
}

// persist saves the outcome; a storage error on an otherwise-finished
// document downgrades it to FAILED so the caller never sees a PERSISTED
// status that is not actually durable.
func (p *Processor) persist(ctx context.Context, out *entity.DocumentOutcome) {
	if err := p.store.SaveOutcome(ctx, out); err != nil {
		p.logger.Error("pipeline.process.persist_failed",
			"document_id", out.Document.ID, "status", out.Status, "error", err)
		if out.Status == constants.StatusPersisted {
			out.Status = constants.StatusFailed
		}
		if out.Err == "" {
			out.Err = err.Error()
		}
	}
}
