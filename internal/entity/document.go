package entity

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/davidoyelade/invoice-pipeline/constants"
)

// RawDocument is the immutable input to a pipeline pass: file location, size,
// and the SHA-256 content hash used for deduplication. Never mutated after
// discovery.
type RawDocument struct {
	ID           uuid.UUID `json:"id"`
	SourcePath   string    `json:"source_path"`
	FileExt      string    `json:"file_ext"`
	Size         int64     `json:"size"`
	ContentHash  []byte    `json:"-"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// HashHex returns the content hash as lowercase hex.
func (d RawDocument) HashHex() string {
	return hex.EncodeToString(d.ContentHash)
}

// FormatProfile is the format detector's classification of a RawDocument.
// Produced once per document; consumed by the content extractor and as prompt
// hints by the field extraction engine.
type FormatProfile struct {
	Kind          constants.FormatKind `json:"kind"`
	PageCount     int                  `json:"page_count,omitempty"`
	HasTextLayer  bool                 `json:"has_text_layer,omitempty"`
	ColumnHeaders []string             `json:"column_headers,omitempty"`
	SheetNames    []string             `json:"sheet_names,omitempty"`
	ImageWidth    int                  `json:"image_width,omitempty"`
	ImageHeight   int                  `json:"image_height,omitempty"`
}

// ExtractionContext is the per-attempt evidence bundle handed to the field
// extraction engine. WordConfidence maps OCR words to scores in [0,1];
// RefinementHint is set only on retry attempts.
type ExtractionContext struct {
	RawText        string
	Profile        FormatProfile
	WordConfidence map[string]float64
	RefinementHint string
	Attempt        int
}
