package llm

import "context"

// InvoiceFields is the wire shape we ask the model for. Every field is
// optional; anything the model omits or garbles is coerced to null rather
// than trusted.
type InvoiceFields struct {
	VendorName    *string         `json:"vendor_name,omitempty"`
	InvoiceNumber *string         `json:"invoice_number,omitempty"`
	InvoiceDate   *string         `json:"invoice_date,omitempty"` // YYYY-MM-DD
	DueDate       *string         `json:"due_date,omitempty"`     // YYYY-MM-DD
	Subtotal      *float64        `json:"subtotal,omitempty"`
	TaxAmount     *float64        `json:"tax_amount,omitempty"`
	TaxRate       *float64        `json:"tax_rate,omitempty"`
	TotalAmount   *float64        `json:"total_amount,omitempty"`
	Currency      *string         `json:"currency,omitempty"` // ISO 4217
	LineItems     []LineItemField `json:"line_items,omitempty"`
}

// LineItemField is one row of the line-item table in the model response.
type LineItemField struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ModelClient is the narrow boundary to the generative model: system + user
// messages in, raw text response out. Timeout and rate-limit failures surface
// as errors; response content problems do not.
type ModelClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
