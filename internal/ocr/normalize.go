package ocr

import (
	"regexp"
	"strings"
)

var (
	reBoxNoise  = regexp.MustCompile(`[|¦]{2,}`)
	reManySpace = regexp.MustCompile(`[ \t]{3,}`)
	reManyBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips common OCR line noise and collapses runs of whitespace
// without disturbing line structure.
func Normalize(txt string) string {
	txt = reBoxNoise.ReplaceAllString(txt, "")
	txt = reManySpace.ReplaceAllString(txt, "  ")
	txt = reManyBlank.ReplaceAllString(txt, "\n\n")
	return strings.TrimSpace(txt)
}
