package entity

import "time"

// ProcessingAttempt is one orchestrator pass over a document: the record the
// engine produced and the validation run against it. Attempt 0 is the initial
// extraction; 1..N are refinements. Only the last attempt is authoritative for
// persistence.
type ProcessingAttempt struct {
	Index       int              `json:"index"`
	Record      StructuredRecord `json:"record"`
	Validation  ValidationResult `json:"validation"`
	CompletedAt time.Time        `json:"completed_at"`
}
