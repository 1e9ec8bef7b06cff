package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidoyelade/invoice-pipeline/constants"
)

// ExistingRecordRef points at a previously persisted record with the same
// content hash.
type ExistingRecordRef struct {
	DocumentID  uuid.UUID `json:"document_id"`
	HashHex     string    `json:"hash_hex"`
	PersistedAt time.Time `json:"persisted_at"`
}

// DocumentOutcome is the terminal result of one document's pipeline pass.
// Every terminal state carries enough information for a reviewer to act
// without consulting logs.
type DocumentOutcome struct {
	Document   RawDocument              `json:"document"`
	Status     constants.DocumentStatus `json:"status"`
	Record     *StructuredRecord        `json:"record,omitempty"`
	Validation *ValidationResult        `json:"validation,omitempty"`
	Attempts   []ProcessingAttempt      `json:"attempts,omitempty"`
	Duplicate  *ExistingRecordRef       `json:"duplicate,omitempty"`
	RawText    string                   `json:"-"` // provenance, persisted but not serialized outward
	Err        string                   `json:"error,omitempty"`
}

// Succeeded reports whether the document reached PERSISTED.
func (o DocumentOutcome) Succeeded() bool {
	return o.Status == constants.StatusPersisted
}

// BatchJob is a set of documents submitted together. Finalized (immutable)
// once every document resolves or the caller cancels.
type BatchJob struct {
	ID          uuid.UUID         `json:"id"`
	Concurrency int               `json:"concurrency"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Cancelled   bool              `json:"cancelled"`
	Outcomes    []DocumentOutcome `json:"outcomes"`

	Total      int `json:"total"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}
