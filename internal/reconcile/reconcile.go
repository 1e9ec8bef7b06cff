package reconcile

import (
	"fmt"
	"math"
	"strings"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

const (
	vendorSimilarityFloor = 0.8
	reconciledBlendFactor = 1.1
)

// Engine matches extracted records against caller-supplied reference rows
// (purchase orders, ERP exports). Checks run only for fields present on both
// sides; the score is matched checks over executed checks.
type Engine struct {
	tolerance float64
}

func NewEngine(tolerance float64) *Engine {
	if tolerance <= 0 {
		tolerance = 0.01
	}
	return &Engine{tolerance: tolerance}
}

// Reconcile compares the record to the reference. A record with every
// executed check matched (and at least one check executed) is reconciled.
func (e *Engine) Reconcile(rec *entity.StructuredRecord, ref entity.ReferenceData) entity.ReconciliationResult {
	var checks []entity.FieldMatch

	if rec.TotalAmount != nil && ref.TotalAmount != nil {
		checks = append(checks, e.matchAmount(*rec.TotalAmount, *ref.TotalAmount))
	}
	if rec.InvoiceNumber != nil && ref.InvoiceNumber != nil {
		checks = append(checks, matchInvoiceNumber(*rec.InvoiceNumber, *ref.InvoiceNumber))
	}
	if rec.VendorName != nil && ref.VendorName != nil {
		checks = append(checks, matchVendor(*rec.VendorName, *ref.VendorName))
	}
	if rec.InvoiceDate != nil && ref.InvoiceDate != nil {
		checks = append(checks, matchDate(*rec.InvoiceDate, *ref.InvoiceDate))
	}

	var res entity.ReconciliationResult
	matched := 0
	for _, c := range checks {
		if c.Matched {
			matched++
			res.Matches = append(res.Matches, c)
		} else {
			res.Discrepancies = append(res.Discrepancies, c)
		}
	}
	if len(checks) > 0 {
		res.Score = float64(matched) / float64(len(checks))
		res.Reconciled = matched == len(checks)
	}
	return res
}

// BlendConfidence folds the reconciliation outcome into the document
// confidence. A full reconciliation is independent corroboration, so the
// confidence is scaled up (clamped to 1.0); a partial one averages the
// document confidence with the match score.
func BlendConfidence(rec *entity.StructuredRecord, res entity.ReconciliationResult) {
	if len(res.Matches)+len(res.Discrepancies) == 0 {
		return
	}
	if res.Reconciled {
		c := rec.DocumentConfidence * reconciledBlendFactor
		if c > 1.0 {
			c = 1.0
		}
		rec.DocumentConfidence = c
		return
	}
	rec.DocumentConfidence = (rec.DocumentConfidence + res.Score) / 2
}

func (e *Engine) matchAmount(inv, ref float64) entity.FieldMatch {
	m := entity.FieldMatch{
		Field:          entity.FieldTotalAmount,
		InvoiceValue:   fmt.Sprintf("%.2f", inv),
		ReferenceValue: fmt.Sprintf("%.2f", ref),
	}
	if math.Abs(inv-ref) <= e.tolerance {
		m.Matched = true
		m.Reason = "amounts agree within tolerance"
	} else {
		m.Reason = fmt.Sprintf("amounts differ by %.2f", math.Abs(inv-ref))
	}
	return m
}

func matchInvoiceNumber(inv, ref string) entity.FieldMatch {
	m := entity.FieldMatch{
		Field:          entity.FieldInvoiceNumber,
		InvoiceValue:   inv,
		ReferenceValue: ref,
	}
	if normalizeID(inv) == normalizeID(ref) {
		m.Matched = true
		m.Reason = "identifiers match after normalization"
	} else {
		m.Reason = "identifiers differ"
	}
	return m
}

func matchVendor(inv, ref string) entity.FieldMatch {
	m := entity.FieldMatch{
		Field:          entity.FieldVendorName,
		InvoiceValue:   inv,
		ReferenceValue: ref,
	}
	a, b := normalizeVendor(inv), normalizeVendor(ref)
	switch {
	case a == b:
		m.Matched = true
		m.Reason = "names match after normalization"
	case a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)):
		m.Matched = true
		m.Reason = "one name contains the other"
	case bigramSimilarity(a, b) >= vendorSimilarityFloor:
		m.Matched = true
		m.Reason = "names are close enough"
	default:
		m.Reason = "names differ"
	}
	return m
}

func matchDate(inv, ref string) entity.FieldMatch {
	m := entity.FieldMatch{
		Field:          entity.FieldInvoiceDate,
		InvoiceValue:   inv,
		ReferenceValue: ref,
	}
	if strings.TrimSpace(inv) == strings.TrimSpace(ref) {
		m.Matched = true
		m.Reason = "dates match"
	} else {
		m.Reason = "dates differ"
	}
	return m
}

// normalizeID strips everything but letters and digits and lowercases, so
// "INV-2024-001" matches "inv2024001".
func normalizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var vendorSuffixes = []string{"inc", "llc", "ltd", "corp", "co", "gmbh", "sa", "plc"}

func normalizeVendor(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			return r
		}
		return ' '
	}, s)
	words := strings.Fields(s)
	for len(words) > 1 {
		last := words[len(words)-1]
		trimmed := false
		for _, suf := range vendorSuffixes {
			if last == suf {
				words = words[:len(words)-1]
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	return strings.Join(words, " ")
}

// bigramSimilarity is the Sørensen–Dice coefficient over character bigrams.
func bigramSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) < 2 || len(b) < 2 {
		return 0.0
	}
	grams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		grams[a[i:i+2]]++
	}
	overlap := 0
	for i := 0; i < len(b)-1; i++ {
		g := b[i : i+2]
		if grams[g] > 0 {
			grams[g]--
			overlap++
		}
	}
	return 2.0 * float64(overlap) / float64(len(a)-1+len(b)-1)
}
