package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We send it to the model as a structured-output constraint and
// use it locally to validate the response before decoding.
func BuildInvoiceJSONSchema() map[string]any {
	datePattern := `^\d{4}-\d{2}-\d{2}$`

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"quantity":    numberProp(),
			"unit_price":  numberProp(),
			"amount":      numberProp(),
		},
		"required": []string{"description"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor_name":    map[string]any{"type": "string", "minLength": 1},
			"invoice_number": map[string]any{"type": "string", "minLength": 1},
			"invoice_date":   map[string]any{"type": "string", "pattern": datePattern},
			"due_date":       map[string]any{"type": "string", "pattern": datePattern},
			"subtotal":       numberProp(),
			"tax_amount":     numberProp(),
			"tax_rate":       map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"total_amount":   numberProp(),
			"currency":       map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"line_items":     map[string]any{"type": "array", "items": lineItem},
		},
		// Strictness lives in the validator, not the schema: a response
		// missing fields is still a usable (reviewable) record.
		"required": []string{},
	}
}

func numberProp() map[string]any {
	return map[string]any{"type": "number"}
}
