package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// Coordinator fans a set of documents out over a bounded worker gate. Each
// document resolves independently: one failure never aborts its siblings, and
// outcomes land in submission order. Cancelling the context stops admitting
// new documents; work already admitted runs to completion under a detached
// context so no document is left half-persisted.
type Coordinator struct {
	processor *Processor
	logger    *slog.Logger
}

func NewCoordinator(processor *Processor, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{processor: processor, logger: logger}
}

// Run processes docs with at most concurrency in flight and returns the
// finalized BatchJob. The returned job always has one outcome per input
// document; documents never admitted before cancellation are marked SKIPPED.
func (c *Coordinator) Run(ctx context.Context, docs []entity.RawDocument, concurrency int, force bool) *entity.BatchJob {
	if concurrency <= 0 {
		concurrency = 20
	}

	job := &entity.BatchJob{
		ID:          uuid.New(),
		Concurrency: concurrency,
		StartedAt:   time.Now().UTC(),
		Outcomes:    make([]entity.DocumentOutcome, len(docs)),
		Total:       len(docs),
	}

	c.logger.Info("batch.run.start",
		"batch_id", job.ID, "documents", len(docs),
		"concurrency", concurrency, "force", force)

	gate := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	// In-flight documents finish under a context detached from the batch
	// cancellation; only admission observes ctx.
	workCtx := context.WithoutCancel(ctx)

	cancelled := false
	for i, doc := range docs {
		if err := gate.Acquire(ctx, 1); err != nil {
			cancelled = true
			for j := i; j < len(docs); j++ {
				job.Outcomes[j] = entity.DocumentOutcome{
					Document: docs[j],
					Status:   constants.StatusSkipped,
					Err:      "batch cancelled before admission",
				}
			}
			break
		}

		wg.Add(1)
		go func(i int, doc entity.RawDocument) {
			defer wg.Done()
			defer gate.Release(1)
			job.Outcomes[i] = c.processor.Process(workCtx, doc, force)
		}(i, doc)
	}

	wg.Wait()

	job.Cancelled = cancelled
	job.FinishedAt = time.Now().UTC()
	finalizeCounts(job)

	c.logger.Info("batch.run.done",
		"batch_id", job.ID,
		"total", job.Total,
		"succeeded", job.Succeeded,
		"failed", job.Failed,
		"duplicates", job.Duplicates,
		"skipped", job.Skipped,
		"cancelled", job.Cancelled,
		"elapsed_ms", job.FinishedAt.Sub(job.StartedAt).Milliseconds(),
	)
	return job
}

func finalizeCounts(job *entity.BatchJob) {
	for _, o := range job.Outcomes {
		switch o.Status {
		case constants.StatusPersisted:
			job.Succeeded++
		case constants.StatusFailed:
			job.Failed++
		case constants.StatusDuplicate:
			job.Duplicates++
		case constants.StatusSkipped:
			job.Skipped++
		}
	}
}
