package llm

import (
	"strings"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// Confidence policy constants. OCR hints are preferred when the extracted
// value's tokens appear in the recognized word map; otherwise the validation
// outcome decides the fallback.
const (
	confPassFallback = 0.95
	confFailFallback = 0.60
	tabularBoost     = 0.05
)

// applyHintConfidence assigns preliminary per-field confidences from OCR word
// hints. A field whose value tokens appear in the hint map gets the mean
// confidence of the covered tokens; uncovered fields are left out of the map
// and resolved later by FinalizeConfidence. Null fields are pinned to 0.0.
func applyHintConfidence(rec *entity.StructuredRecord, hints map[string]float64) {
	if rec.FieldConfidence == nil {
		rec.FieldConfidence = make(map[string]float64, len(entity.FieldNames))
	}
	for _, name := range entity.FieldNames {
		if !rec.FieldPresent(name) {
			rec.FieldConfidence[name] = 0.0
			continue
		}
		if len(hints) == 0 {
			continue
		}
		if c, ok := hintConfidence(rec.FieldText(name), hints); ok {
			rec.FieldConfidence[name] = c
		}
	}
}

// hintConfidence averages the hint confidence over the value's tokens that
// appear in the OCR word map. Partial coverage is fine; zero coverage reports
// ok=false so the caller can fall back on the validation outcome.
func hintConfidence(value string, hints map[string]float64) (float64, bool) {
	var sum float64
	var n int
	for _, tok := range strings.Fields(value) {
		key := normalizeToken(tok)
		if key == "" {
			continue
		}
		if c, ok := hints[key]; ok {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func normalizeToken(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,;:()[]$£€¥\"'")
}

// FinalizeConfidence resolves the confidences that depend on the validation
// outcome: populated fields without an OCR hint fall back to 0.95 when the
// record passed validation and 0.60 when it failed, structured tabular input
// earns a +0.05 boost (clamped to 1.0), and the document confidence is
// recomputed. Null fields stay at exactly 0.0.
func FinalizeConfidence(rec *entity.StructuredRecord, profile entity.FormatProfile, passed bool) {
	if rec.FieldConfidence == nil {
		rec.FieldConfidence = make(map[string]float64, len(entity.FieldNames))
	}

	fallback := confFailFallback
	if passed {
		fallback = confPassFallback
	}
	boost := profile.Kind == constants.Tabular && len(profile.ColumnHeaders) > 0

	for _, name := range entity.FieldNames {
		if !rec.FieldPresent(name) {
			rec.FieldConfidence[name] = 0.0
			continue
		}
		// map presence marks "hint assigned": a genuinely zero-confidence
		// OCR hint must not be promoted to the fallback
		c, ok := rec.FieldConfidence[name]
		if !ok {
			c = fallback
		}
		if boost {
			c += tabularBoost
			if c > 1.0 {
				c = 1.0
			}
		}
		rec.FieldConfidence[name] = c
	}

	rec.RecomputeDocumentConfidence()
}
