package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/llm"
	"github.com/davidoyelade/invoice-pipeline/internal/validate"
)

// FieldExtractor is the extraction engine the refinement loop drives. One
// call is one attempt; transport failures return an error, unusable model
// output returns an all-null record.
type FieldExtractor interface {
	Extract(ctx context.Context, ec entity.ExtractionContext) (entity.StructuredRecord, error)
}

// RefinementController runs the extract→validate→refine loop for one
// document. States: an attempt is extracted, validated, and either accepted
// (no critical failures), refined (failures remain and the retry budget
// allows another pass), or exhausted (budget spent; the last attempt stands).
type RefinementController struct {
	engine     FieldExtractor
	validator  *validate.Validator
	maxRetries int
	logger     *slog.Logger
}

func NewRefinementController(engine FieldExtractor, validator *validate.Validator, maxRetries int, logger *slog.Logger) *RefinementController {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefinementController{
		engine:     engine,
		validator:  validator,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run executes at most maxRetries+1 engine calls and returns every attempt in
// order. The last attempt is the authoritative one regardless of whether it
// passed; its confidences are finalized against its own validation outcome.
// An engine error aborts the loop, but attempts already made are returned so
// the caller can persist partial provenance.
func (c *RefinementController) Run(ctx context.Context, base entity.ExtractionContext) ([]entity.ProcessingAttempt, error) {
	var attempts []entity.ProcessingAttempt

	ec := base
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		ec.Attempt = attempt

		rec, err := c.engine.Extract(ctx, ec)
		if err != nil {
			return attempts, err
		}

		res := c.validator.Validate(&rec)
		llm.FinalizeConfidence(&rec, ec.Profile, !res.HasFailure())

		attempts = append(attempts, entity.ProcessingAttempt{
			Index:       attempt,
			Record:      rec,
			Validation:  res,
			CompletedAt: time.Now().UTC(),
		})

		pass, warn, fail := res.Counts()
		c.logger.Info("pipeline.refine.attempt",
			"attempt", attempt,
			"pass", pass, "warn", warn, "fail", fail,
			"document_confidence", rec.DocumentConfidence,
		)

		if !res.HasFailure() {
			return attempts, nil
		}
		if attempt == c.maxRetries {
			c.logger.Warn("pipeline.refine.exhausted",
				"attempts", attempt+1, "failures", fail)
			return attempts, nil
		}

		c.logger.Debug("pipeline.refine.state",
			"status", constants.StatusRefining, "attempt", attempt)
		ec.RefinementHint = validate.BuildRefinementHint(res)
	}

	return attempts, nil
}
