package constants

import "strings"

// FormatKind is the classification the format detector assigns to a document.
type FormatKind string

// Stable values (stored alongside persisted records).
const (
	PDFText    FormatKind = "pdf-text"    // PDF with a usable embedded text layer
	PDFScanned FormatKind = "pdf-scanned" // PDF that needs rasterization + OCR
	Image      FormatKind = "image"       // raster image, OCR only
	Tabular    FormatKind = "tabular"     // spreadsheet / delimited file
)

// FormatFamily is the coarse family derived from the file extension alone.
// The detector refines PDF into PDFText/PDFScanned by inspecting the bytes.
type FormatFamily string

const (
	FamilyPDF     FormatFamily = "PDF"
	FamilyImage   FormatFamily = "IMAGE"
	FamilyTabular FormatFamily = "TABULAR"
)

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"xlsx": {},
	"xlsm": {},
	"csv":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFamily maps a normalized extension to its candidate format family.
// Returns "" for unsupported extensions.
func MapExtToFamily(ext string) FormatFamily {
	switch NormalizeExt(ext) {
	case "pdf":
		return FamilyPDF
	case "jpg", "jpeg", "png":
		return FamilyImage
	case "xlsx", "xlsm", "csv":
		return FamilyTabular
	default:
		return ""
	}
}

// TextLayerThreshold is the minimum number of embedded-text characters for a
// PDF to count as pdf-text; below it the document is treated as scanned.
const TextLayerThreshold = 100
