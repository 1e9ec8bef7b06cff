package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

const maxPromptChars = 12000

// BuildSystemPrompt composes the system message: parsing rules, the JSON
// schema, and format-specific guidance derived from the FormatProfile.
func BuildSystemPrompt(profile entity.FormatProfile, defaultCurrency string) string {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defaultCurrency + " if uncertain.",
		"The vendor is the party ISSUING the invoice (seller/supplier), never the buyer.",
		"Extract all amounts as plain numbers without currency symbols or thousands separators.",
		"Extract every row of the goods/services table into 'line_items'.",
		"Never output null and never invent values. If a field is not present in the document, omit it.",
	}

	parts = append(parts, formatHint(profile)...)

	schema, _ := json.MarshalIndent(BuildInvoiceJSONSchema(), "", "  ")
	parts = append(parts, "JSON Schema:\n"+string(schema))

	return strings.Join(parts, " ")
}

// formatHint tells the model how the raw text was produced so it can weigh
// the evidence accordingly.
func formatHint(profile entity.FormatProfile) []string {
	switch profile.Kind {
	case constants.Tabular:
		hint := "The source is a spreadsheet rendered as text tables, one '=== sheet: NAME ===' marker per sheet."
		if len(profile.ColumnHeaders) > 0 {
			hint += " The table has a header row: " + strings.Join(profile.ColumnHeaders, ", ") +
				" — map columns positionally onto the schema fields."
		}
		return []string{hint}
	case constants.PDFScanned, constants.Image:
		return []string{"The source text comes from OCR and may contain recognition noise; prefer values that are arithmetically consistent."}
	case constants.PDFText:
		return []string{"The source text was extracted from the PDF text layer and is high fidelity."}
	}
	return nil
}

// BuildUserPrompt packages the raw text and, on retry attempts, the prior
// validation failures as corrective guidance.
func BuildUserPrompt(ec entity.ExtractionContext) string {
	var b strings.Builder

	if hint := strings.TrimSpace(ec.RefinementHint); hint != "" {
		b.WriteString("A previous extraction of this document failed validation:\n")
		b.WriteString(hint)
		b.WriteString("\nRe-read the document carefully and correct the named fields.\n\n")
	}

	b.WriteString("Document text")
	if ec.Attempt > 0 {
		fmt.Fprintf(&b, " (attempt %d)", ec.Attempt+1)
	}
	b.WriteString(":\n")

	text := ec.RawText
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars] + "\n…(truncated)"
	}
	b.WriteString(text)

	return b.String()
}
