package constants

// DocumentStatus is the canonical state of a document inside one pipeline pass.
type DocumentStatus string

// Stable values (store these exact strings).
const (
	StatusDiscovered     DocumentStatus = "DISCOVERED"
	StatusDeduplicated   DocumentStatus = "DEDUPLICATED"
	StatusFormatDetected DocumentStatus = "FORMAT_DETECTED"
	StatusExtracted      DocumentStatus = "EXTRACTED"
	StatusValidated      DocumentStatus = "VALIDATED"
	StatusRefining       DocumentStatus = "REFINING"
	StatusPersisted      DocumentStatus = "PERSISTED" // terminal success
	StatusFailed         DocumentStatus = "FAILED"    // terminal failure
	StatusDuplicate      DocumentStatus = "DUPLICATE" // terminal, surfaced to caller
	StatusSkipped        DocumentStatus = "SKIPPED"   // never admitted (batch cancelled)
)

// Terminal reports whether s is an end state of the document state machine.
func (s DocumentStatus) Terminal() bool {
	switch s {
	case StatusPersisted, StatusFailed, StatusDuplicate, StatusSkipped:
		return true
	}
	return false
}

// Severity of a single validation rule outcome.
type Severity string

const (
	SeverityPass Severity = "pass"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)
