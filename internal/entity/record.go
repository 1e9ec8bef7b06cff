package entity

import "strconv"

// Canonical field names, used as keys of the per-field confidence map and as
// rule subjects in validation messages.
const (
	FieldVendorName    = "vendor_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
	FieldSubtotal      = "subtotal"
	FieldTaxAmount     = "tax_amount"
	FieldTaxRate       = "tax_rate"
	FieldTotalAmount   = "total_amount"
	FieldCurrency      = "currency"
	FieldLineItems     = "line_items"
)

// FieldNames lists every StructuredRecord field in canonical order.
var FieldNames = []string{
	FieldVendorName,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTaxRate,
	FieldTotalAmount,
	FieldCurrency,
	FieldLineItems,
}

// LineItem is one row of the invoice's goods/services table.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// StructuredRecord is the fixed-schema output of invoice extraction. Every
// field may be null; a null field's confidence is exactly 0.0, and a populated
// field's confidence is expected to be > 0 (a violation is a data-quality
// warning, not a hard error).
type StructuredRecord struct {
	VendorName    *string    `json:"vendor_name"`
	InvoiceNumber *string    `json:"invoice_number"`
	InvoiceDate   *string    `json:"invoice_date"` // YYYY-MM-DD
	DueDate       *string    `json:"due_date"`     // YYYY-MM-DD
	Subtotal      *float64   `json:"subtotal"`
	TaxAmount     *float64   `json:"tax_amount"`
	TaxRate       *float64   `json:"tax_rate"`
	TotalAmount   *float64   `json:"total_amount"`
	Currency      *string    `json:"currency"`
	LineItems     []LineItem `json:"line_items,omitempty"`

	FieldConfidence    map[string]float64 `json:"field_confidence"`
	DocumentConfidence float64            `json:"document_confidence"`
}

// FieldPresent reports whether the named field is populated.
func (r *StructuredRecord) FieldPresent(name string) bool {
	switch name {
	case FieldVendorName:
		return r.VendorName != nil
	case FieldInvoiceNumber:
		return r.InvoiceNumber != nil
	case FieldInvoiceDate:
		return r.InvoiceDate != nil
	case FieldDueDate:
		return r.DueDate != nil
	case FieldSubtotal:
		return r.Subtotal != nil
	case FieldTaxAmount:
		return r.TaxAmount != nil
	case FieldTaxRate:
		return r.TaxRate != nil
	case FieldTotalAmount:
		return r.TotalAmount != nil
	case FieldCurrency:
		return r.Currency != nil
	case FieldLineItems:
		return len(r.LineItems) > 0
	}
	return false
}

// FieldText returns the extracted value of the named field rendered as text,
// for matching against OCR word-confidence hints. Empty for null fields and
// for line items.
func (r *StructuredRecord) FieldText(name string) string {
	switch name {
	case FieldVendorName:
		return deref(r.VendorName)
	case FieldInvoiceNumber:
		return deref(r.InvoiceNumber)
	case FieldInvoiceDate:
		return deref(r.InvoiceDate)
	case FieldDueDate:
		return deref(r.DueDate)
	case FieldCurrency:
		return deref(r.Currency)
	case FieldSubtotal:
		return money(r.Subtotal)
	case FieldTaxAmount:
		return money(r.TaxAmount)
	case FieldTaxRate:
		return money(r.TaxRate)
	case FieldTotalAmount:
		return money(r.TotalAmount)
	}
	return ""
}

// RecomputeDocumentConfidence sets DocumentConfidence to the mean of the
// non-null per-field confidences, or 0.0 when every field is null.
func (r *StructuredRecord) RecomputeDocumentConfidence() {
	var sum float64
	var n int
	for _, name := range FieldNames {
		if !r.FieldPresent(name) {
			continue
		}
		sum += r.FieldConfidence[name]
		n++
	}
	if n == 0 {
		r.DocumentConfidence = 0.0
		return
	}
	r.DocumentConfidence = sum / float64(n)
}

// Empty reports whether every field is null.
func (r *StructuredRecord) Empty() bool {
	for _, name := range FieldNames {
		if r.FieldPresent(name) {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func money(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}
