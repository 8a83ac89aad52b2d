package models

import (
	"time"

	"github.com/google/uuid"
)

type PhotoStatus string

const (
	PhotoStatusPending PhotoStatus = "pending"
	PhotoStatusReady   PhotoStatus = "ready"
	PhotoStatusFailed  PhotoStatus = "failed"
)

type Photo struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	CaseID    uuid.UUID   `json:"case_id" db:"case_id"`
	ObjectKey string      `json:"object_key" db:"object_key"`
	Status    PhotoStatus `json:"status" db:"status"`
	Features  FeatureSet  `json:"features"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// FeatureSet is the bundle of descriptors extracted from one photo.
// Every field is optional: a signal that could not be computed is simply
// absent (zero value / nil) and is skipped during scoring.
type FeatureSet struct {
	PHash       string     `json:"phash,omitempty"`       // 64-bit dHash, hex encoded
	AvgColor    *[3]uint8  `json:"avg_color,omitempty"`   // average RGB
	ColorBucket int16      `json:"color_bucket"`          // coarse 3-level-per-channel bucket, -1 when absent
	OCRTokens   []string   `json:"ocr_tokens,omitempty"`  // lower-cased, punctuation-stripped
	Identifiers []string   `json:"identifiers,omitempty"` // verbatim structured identifiers (plates, serials)
	LumaHist    []float32  `json:"luma_hist,omitempty"`   // 32-bin luminance histogram, normalized
	Shape       []float32  `json:"shape,omitempty"`       // 16-bin edge orientation histogram, normalized
	Embedding   []float32  `json:"-"`                     // 512-d visual embedding, L2-normalized
}

// HasAny reports whether at least one comparable signal was extracted.
func (f *FeatureSet) HasAny() bool {
	return f.PHash != "" || f.AvgColor != nil || len(f.OCRTokens) > 0 ||
		len(f.LumaHist) > 0 || len(f.Shape) > 0 || len(f.Embedding) > 0
}
