package repository

import (
	"context"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// DuplicateRegistry answers content-hash lookups against previously persisted
// documents. A hit is surfaced to the caller as a duplicate signal; it never
// silently skips work.
type DuplicateRegistry interface {
	// Lookup returns a reference to the persisted record sharing the hash,
	// or nil when the hash is unseen.
	Lookup(ctx context.Context, contentHash []byte) (*entity.ExistingRecordRef, error)
}

// RecordStore persists document outcomes. SaveOutcome is called once per
// document with the final outcome (last attempt's record and validation);
// implementations must be safe for concurrent use since batch workers share
// one store.
type RecordStore interface {
	DuplicateRegistry

	SaveOutcome(ctx context.Context, outcome *entity.DocumentOutcome) error
	Close()
}
