package entity

import (
	"github.com/davidoyelade/invoice-pipeline/constants"
)

// RuleOutcome is one validation rule's result. Expected/Actual are set only
// where the rule compares monetary values.
type RuleOutcome struct {
	RuleID   string             `json:"rule_id"`
	Severity constants.Severity `json:"severity"`
	Message  string             `json:"message"`
	Expected *float64           `json:"expected,omitempty"`
	Actual   *float64           `json:"actual,omitempty"`
}

// ValidationResult is the ordered set of rule outcomes for one
// StructuredRecord. Regenerated from scratch whenever the record changes.
type ValidationResult struct {
	Outcomes []RuleOutcome `json:"outcomes"`
}

// HasFailure reports a critical failure: at least one fail-severity outcome.
// This is the trigger condition for the self-correction loop.
func (v ValidationResult) HasFailure() bool {
	for _, o := range v.Outcomes {
		if o.Severity == constants.SeverityFail {
			return true
		}
	}
	return false
}

// Failures returns the fail-severity outcomes in order.
func (v ValidationResult) Failures() []RuleOutcome {
	var out []RuleOutcome
	for _, o := range v.Outcomes {
		if o.Severity == constants.SeverityFail {
			out = append(out, o)
		}
	}
	return out
}

// Counts returns the number of pass, warn, and fail outcomes.
func (v ValidationResult) Counts() (pass, warn, fail int) {
	for _, o := range v.Outcomes {
		switch o.Severity {
		case constants.SeverityPass:
			pass++
		case constants.SeverityWarn:
			warn++
		case constants.SeverityFail:
			fail++
		}
	}
	return
}
