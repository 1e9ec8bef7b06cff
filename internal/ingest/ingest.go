package ingest

import (
	"context"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// DirStats summarizes a directory discovery pass.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// Discoverer turns file references into RawDocuments (hash computed, format
// family sniffed from the extension). It performs no extraction work.
type Discoverer interface {
	// DiscoverPath builds a RawDocument for a single file.
	DiscoverPath(ctx context.Context, path string) (entity.RawDocument, error)
	// DiscoverDirectory walks root and builds a RawDocument per matching file.
	DiscoverDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.RawDocument, DirStats, error)
}
