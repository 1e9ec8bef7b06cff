package extract

import (
	"context"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// ContentExtractor produces the raw text and extraction hints for a document
// whose format has already been detected. Failures here (OCR unavailable, out
// of memory, timeout) are terminal for the document; the refinement loop
// addresses validation failures, never extraction failures.
type ContentExtractor interface {
	Extract(ctx context.Context, doc entity.RawDocument, profile entity.FormatProfile) (entity.ExtractionContext, error)
}
