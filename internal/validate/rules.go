package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

const dateLayout = "2006-01-02"

// Config bounds the arithmetic and sanity rules.
type Config struct {
	Tolerance   float64       // absolute tolerance for money comparisons, currency units
	MaxTotal    float64       // sanity ceiling for total_amount
	GraceWindow time.Duration // how far in the future an invoice date may be
}

// Validator runs the ordered rule set against a StructuredRecord. It is pure:
// the same record always produces the same result, and running it never
// mutates the record. The clock is injectable so date rules are testable.
type Validator struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Validator {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 0.01
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 1_000_000
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 72 * time.Hour
	}
	return &Validator{cfg: cfg, now: time.Now}
}

// NewWithClock is New with a fixed clock, for tests.
func NewWithClock(cfg Config, now func() time.Time) *Validator {
	v := New(cfg)
	v.now = now
	return v
}

// Validate evaluates every rule in a fixed order and returns the full outcome
// list. The result is regenerated from scratch on every call; nothing is
// carried over from previous attempts.
func (v *Validator) Validate(rec *entity.StructuredRecord) entity.ValidationResult {
	var res entity.ValidationResult

	res.Outcomes = append(res.Outcomes, v.requiredField(rec, entity.FieldVendorName))
	res.Outcomes = append(res.Outcomes, v.requiredField(rec, entity.FieldInvoiceNumber))
	res.Outcomes = append(res.Outcomes, v.requiredField(rec, entity.FieldTotalAmount))
	res.Outcomes = append(res.Outcomes, v.arithmeticTotal(rec))
	res.Outcomes = append(res.Outcomes, v.dateSanity(rec)...)
	res.Outcomes = append(res.Outcomes, v.vendorPlaceholder(rec))
	res.Outcomes = append(res.Outcomes, v.lineItemSum(rec))
	res.Outcomes = append(res.Outcomes, v.amountSanity(rec)...)

	return res
}

func (v *Validator) requiredField(rec *entity.StructuredRecord, name string) entity.RuleOutcome {
	id := "required_" + name
	if !rec.FieldPresent(name) {
		return entity.RuleOutcome{
			RuleID:   id,
			Severity: constants.SeverityFail,
			Message:  fmt.Sprintf("%s is missing", name),
		}
	}
	return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
}

// arithmeticTotal checks subtotal + tax_amount == total_amount within the
// tolerance. With only one side of the equation populated the check degrades
// to a warning; with nothing to compare it passes.
func (v *Validator) arithmeticTotal(rec *entity.StructuredRecord) entity.RuleOutcome {
	const id = "arithmetic_total"

	if rec.TotalAmount == nil || (rec.Subtotal == nil && rec.TaxAmount == nil) {
		return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
	}
	if rec.Subtotal == nil || rec.TaxAmount == nil {
		return entity.RuleOutcome{
			RuleID:   id,
			Severity: constants.SeverityWarn,
			Message:  "cannot verify total: subtotal or tax_amount is missing",
		}
	}

	expected := *rec.Subtotal + *rec.TaxAmount
	actual := *rec.TotalAmount
	if math.Abs(expected-actual) > v.cfg.Tolerance {
		return entity.RuleOutcome{
			RuleID:   id,
			Severity: constants.SeverityFail,
			Message: fmt.Sprintf("subtotal %.2f + tax %.2f = %.2f does not match total %.2f",
				*rec.Subtotal, *rec.TaxAmount, expected, actual),
			Expected: &expected,
			Actual:   &actual,
		}
	}
	return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
}

func (v *Validator) dateSanity(rec *entity.StructuredRecord) []entity.RuleOutcome {
	var out []entity.RuleOutcome

	var invoiceDate time.Time
	invoiceOK := false
	if rec.InvoiceDate != nil {
		d, err := time.Parse(dateLayout, *rec.InvoiceDate)
		switch {
		case err != nil:
			out = append(out, entity.RuleOutcome{
				RuleID:   "invoice_date_format",
				Severity: constants.SeverityWarn,
				Message:  fmt.Sprintf("invoice_date %q is not a valid YYYY-MM-DD date", *rec.InvoiceDate),
			})
		case d.After(v.now().Add(v.cfg.GraceWindow)):
			out = append(out, entity.RuleOutcome{
				RuleID:   "invoice_date_future",
				Severity: constants.SeverityWarn,
				Message:  fmt.Sprintf("invoice_date %s is in the future", *rec.InvoiceDate),
			})
		default:
			invoiceDate, invoiceOK = d, true
			out = append(out, entity.RuleOutcome{RuleID: "invoice_date_format", Severity: constants.SeverityPass})
		}
	}

	if rec.DueDate != nil {
		d, err := time.Parse(dateLayout, *rec.DueDate)
		switch {
		case err != nil:
			out = append(out, entity.RuleOutcome{
				RuleID:   "due_date_format",
				Severity: constants.SeverityWarn,
				Message:  fmt.Sprintf("due_date %q is not a valid YYYY-MM-DD date", *rec.DueDate),
			})
		case invoiceOK && d.Before(invoiceDate):
			out = append(out, entity.RuleOutcome{
				RuleID:   "due_before_invoice",
				Severity: constants.SeverityWarn,
				Message:  fmt.Sprintf("due_date %s precedes invoice_date %s", *rec.DueDate, *rec.InvoiceDate),
			})
		default:
			out = append(out, entity.RuleOutcome{RuleID: "due_date_format", Severity: constants.SeverityPass})
		}
	}

	return out
}

func (v *Validator) vendorPlaceholder(rec *entity.StructuredRecord) entity.RuleOutcome {
	const id = "vendor_placeholder"
	if rec.VendorName != nil && constants.IsPlaceholderVendor(*rec.VendorName) {
		return entity.RuleOutcome{
			RuleID:   id,
			Severity: constants.SeverityWarn,
			Message:  fmt.Sprintf("vendor_name %q looks like a template placeholder", *rec.VendorName),
		}
	}
	return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
}

// lineItemSum compares the sum of line item amounts against the subtotal, or
// against the total when no subtotal was extracted. Line item extraction is
// noisy, so a mismatch is a warning rather than a failure.
func (v *Validator) lineItemSum(rec *entity.StructuredRecord) entity.RuleOutcome {
	const id = "line_item_sum"

	if len(rec.LineItems) == 0 {
		return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
	}

	var sum float64
	counted := 0
	for _, it := range rec.LineItems {
		if it.Amount != nil {
			sum += *it.Amount
			counted++
		}
	}
	if counted == 0 {
		return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
	}

	var target *float64
	targetName := entity.FieldSubtotal
	switch {
	case rec.Subtotal != nil:
		target = rec.Subtotal
	case rec.TotalAmount != nil:
		target = rec.TotalAmount
		targetName = entity.FieldTotalAmount
	default:
		return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
	}

	if math.Abs(sum-*target) > v.cfg.Tolerance {
		return entity.RuleOutcome{
			RuleID:   id,
			Severity: constants.SeverityWarn,
			Message: fmt.Sprintf("line items sum to %.2f but %s is %.2f (%d of %d items carry amounts)",
				sum, targetName, *target, counted, len(rec.LineItems)),
			Expected: target,
			Actual:   &sum,
		}
	}
	return entity.RuleOutcome{RuleID: id, Severity: constants.SeverityPass}
}

func (v *Validator) amountSanity(rec *entity.StructuredRecord) []entity.RuleOutcome {
	var out []entity.RuleOutcome
	if rec.TotalAmount == nil {
		return out
	}
	t := *rec.TotalAmount
	switch {
	case t < 0:
		out = append(out, entity.RuleOutcome{
			RuleID:   "amount_negative",
			Severity: constants.SeverityWarn,
			Message:  fmt.Sprintf("total_amount %.2f is negative; credit notes need manual review", t),
		})
	case t == 0:
		out = append(out, entity.RuleOutcome{
			RuleID:   "amount_zero",
			Severity: constants.SeverityWarn,
			Message:  "total_amount is zero",
		})
	case t > v.cfg.MaxTotal:
		out = append(out, entity.RuleOutcome{
			RuleID:   "amount_excessive",
			Severity: constants.SeverityWarn,
			Message:  fmt.Sprintf("total_amount %.2f exceeds the sanity ceiling %.0f", t, v.cfg.MaxTotal),
		})
	default:
		out = append(out, entity.RuleOutcome{RuleID: "amount_sanity", Severity: constants.SeverityPass})
	}
	return out
}

// BuildRefinementHint condenses a failed validation into corrective guidance
// for the next extraction attempt.
func BuildRefinementHint(res entity.ValidationResult) string {
	fails := res.Failures()
	if len(fails) == 0 {
		return ""
	}
	lines := make([]string, 0, len(fails))
	for _, f := range fails {
		lines = append(lines, "- "+f.Message)
	}
	return strings.Join(lines, "\n")
}
