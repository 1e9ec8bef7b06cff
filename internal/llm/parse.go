package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var isoDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// field name synonyms the model keeps producing despite the schema
var fieldSynonyms = map[string]string{
	"vendor":         "vendor_name",
	"merchant_name":  "vendor_name",
	"supplier":       "vendor_name",
	"invoice_no":     "invoice_number",
	"invoice_id":     "invoice_number",
	"date":           "invoice_date",
	"total":          "total_amount",
	"amount_due":     "total_amount",
	"grand_total":    "total_amount",
	"tax":            "tax_amount",
	"vat":            "tax_amount",
	"currency_code":  "currency",
	"items":          "line_items",
	"sub_total":      "subtotal",
	"payment_due":    "due_date",
	"due":            "due_date",
}

var moneyFields = []string{"subtotal", "tax_amount", "tax_rate", "total_amount"}

var allowedKeys = map[string]struct{}{
	"vendor_name": {}, "invoice_number": {}, "invoice_date": {}, "due_date": {},
	"subtotal": {}, "tax_amount": {}, "tax_rate": {}, "total_amount": {},
	"currency": {}, "line_items": {},
}

// ParseResponse turns the model's text response into InvoiceFields. The
// response is untrusted: it is fence-stripped, sanitized, validated against
// the schema, and only then decoded. A response that cannot be salvaged
// yields (zero fields, false) — never an error; downstream validation flags
// the empty record for review.
func ParseResponse(raw string, logger *slog.Logger) (InvoiceFields, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	body := extractJSONObject(raw)
	if body == "" {
		logger.Warn("llm.parse.no_json", "raw_len", len(raw))
		return InvoiceFields{}, false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		logger.Warn("llm.parse.decode_failed", "error", err)
		return InvoiceFields{}, false
	}

	m, dropped := sanitize(m)
	if len(dropped) > 0 {
		logger.Warn("llm.parse.sanitized", "dropped", strings.Join(dropped, ","))
	}

	cleaned, err := json.Marshal(m)
	if err != nil {
		return InvoiceFields{}, false
	}
	if err := ValidateAgainstSchema(BuildInvoiceJSONSchema(), cleaned); err != nil {
		logger.Warn("llm.parse.schema_validation_failed", "error", err)
		return InvoiceFields{}, false
	}

	var out InvoiceFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		logger.Warn("llm.parse.unmarshal_failed", "error", err)
		return InvoiceFields{}, false
	}
	return out, true
}

// sanitize renames known synonyms, coerces numeric strings, and drops nulls,
// empties, unknown keys, and values the schema would reject, so one malformed
// field never discards the rest of the response. Only shapes are fixed here;
// values are never invented.
func sanitize(m map[string]any) (map[string]any, []string) {
	var dropped []string

	for from, to := range fieldSynonyms {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	for _, k := range moneyFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			// already numeric
		case string:
			if f, ok := parseAmount(t); ok {
				m[k] = f
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(unparseable)")
			}
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	if v, ok := m["tax_rate"].(float64); ok {
		switch {
		case v >= 0 && v <= 1:
			// already a fraction
		case v > 1 && v <= 100:
			// the model answered in percent
			m["tax_rate"] = v / 100
			dropped = append(dropped, "tax_rate(percent)")
		default:
			delete(m, "tax_rate")
			dropped = append(dropped, "tax_rate(range)")
		}
	}

	if v, ok := m["currency"].(string); ok {
		c := strings.ToUpper(strings.TrimSpace(v))
		if len(c) == 3 {
			m["currency"] = c
		} else {
			delete(m, "currency")
			dropped = append(dropped, "currency(shape)")
		}
	}

	for _, k := range []string{"vendor_name", "invoice_number", "invoice_date", "due_date"} {
		if v, ok := m[k]; ok {
			s, isStr := v.(string)
			s = strings.TrimSpace(s)
			if !isStr || s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	for _, k := range []string{"invoice_date", "due_date"} {
		if s, ok := m[k].(string); ok && !isoDateRE.MatchString(s) {
			delete(m, k)
			dropped = append(dropped, k+"(pattern)")
		}
	}

	if items, ok := m["line_items"].([]any); ok {
		cleaned := sanitizeLineItems(items)
		if len(cleaned) == 0 {
			delete(m, "line_items")
			dropped = append(dropped, "line_items(empty)")
		} else {
			m["line_items"] = cleaned
		}
	} else if _, present := m["line_items"]; present {
		delete(m, "line_items")
		dropped = append(dropped, "line_items(type)")
	}

	for k := range m {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	return m, dropped
}

func sanitizeLineItems(items []any) []any {
	var out []any
	for _, it := range items {
		row, ok := it.(map[string]any)
		if !ok {
			continue
		}
		desc, _ := row["description"].(string)
		if strings.TrimSpace(desc) == "" {
			continue
		}
		cleaned := map[string]any{"description": strings.TrimSpace(desc)}
		for _, k := range []string{"quantity", "unit_price", "amount"} {
			switch t := row[k].(type) {
			case float64:
				cleaned[k] = t
			case string:
				if f, ok := parseAmount(t); ok {
					cleaned[k] = f
				}
			}
		}
		out = append(out, cleaned)
	}
	return out
}

// parseAmount accepts "1,100.00", "$108.00", "7" and the like.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$£€¥ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// extractJSONObject strips markdown fences and returns the outermost JSON
// object in the response, or "" when none exists.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

