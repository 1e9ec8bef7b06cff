package entity

// ReferenceData is a caller-supplied row from another system (purchase order,
// ERP export) to reconcile an extracted record against.
type ReferenceData struct {
	VendorName    *string  `json:"vendor_name,omitempty"`
	InvoiceNumber *string  `json:"invoice_number,omitempty"`
	InvoiceDate   *string  `json:"invoice_date,omitempty"` // YYYY-MM-DD
	TotalAmount   *float64 `json:"total_amount,omitempty"`
}

// FieldMatch is one reconciliation check.
type FieldMatch struct {
	Field          string `json:"field"`
	Matched        bool   `json:"matched"`
	Reason         string `json:"reason"`
	InvoiceValue   string `json:"invoice_value,omitempty"`
	ReferenceValue string `json:"reference_value,omitempty"`
}

// ReconciliationResult summarizes matching a record against reference data.
// Score is matched checks over total checks.
type ReconciliationResult struct {
	Reconciled    bool         `json:"reconciled"`
	Score         float64      `json:"score"`
	Matches       []FieldMatch `json:"matches"`
	Discrepancies []FieldMatch `json:"discrepancies"`
}
