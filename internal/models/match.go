package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusNotified  MatchStatus = "notified"
	MatchStatusViewed    MatchStatus = "viewed"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"
	MatchStatusExpired   MatchStatus = "expired"
)

// Terminal reports whether no further transitions may leave this status.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusConfirmed || s == MatchStatusRejected || s == MatchStatusExpired
}

// MatchType names the signal (or signal group) that dominated the score.
type MatchType string

const (
	MatchTypeImageDNA     MatchType = "image_dna"
	MatchTypeHash         MatchType = "hash"
	MatchTypeText         MatchType = "text"
	MatchTypeColor        MatchType = "color"
	MatchTypeVisual       MatchType = "visual"
	MatchTypeShape        MatchType = "shape"
	MatchTypeLicensePlate MatchType = "license_plate"
	MatchTypeSerialNumber MatchType = "serial_number"
	MatchTypeCombined     MatchType = "combined"
	MatchTypePet          MatchType = "pet"
	MatchTypePattern      MatchType = "pattern"
)

// MatchSide identifies which user of a match an action refers to.
type MatchSide string

const (
	SideSource MatchSide = "source"
	SideTarget MatchSide = "target"
)

type Verdict string

const (
	VerdictConfirmed Verdict = "confirmed"
	VerdictRejected  Verdict = "rejected"
	VerdictUnsure    Verdict = "unsure"
)

// RejectReason is the fixed vocabulary of structured rejection reasons.
type RejectReason string

const (
	ReasonDifferentItem    RejectReason = "different_item"
	ReasonDifferentColor   RejectReason = "different_color"
	ReasonDifferentBrand   RejectReason = "different_brand"
	ReasonWrongCategory    RejectReason = "wrong_category"
	ReasonBadPhoto         RejectReason = "bad_photo"
	ReasonTooFar           RejectReason = "too_far"
	ReasonAlreadyRecovered RejectReason = "already_recovered"
	ReasonOther            RejectReason = "other"
)

// KnownReason reports whether r belongs to the enumerated vocabulary.
func KnownReason(r RejectReason) bool {
	switch r {
	case ReasonDifferentItem, ReasonDifferentColor, ReasonDifferentBrand,
		ReasonWrongCategory, ReasonBadPhoto, ReasonTooFar,
		ReasonAlreadyRecovered, ReasonOther:
		return true
	}
	return false
}

// SubScores holds the six independent similarity measures of a pair.
// A nil entry means the signal could not be computed for either photo
// and contributes no weight to the overall score.
type SubScores struct {
	Embedding *int `json:"embedding,omitempty"`
	Hash      *int `json:"hash,omitempty"`
	Text      *int `json:"text,omitempty"`
	Color     *int `json:"color,omitempty"`
	Visual    *int `json:"visual,omitempty"`
	Shape     *int `json:"shape,omitempty"`
}

// MatchDetails is the closed set of structured evidence variants. At
// most one variant is populated, per the Kind discriminator; consumers
// can switch exhaustively on Kind.
type MatchDetails struct {
	Kind         string                `json:"kind"` // license_plate | serial_number | text_overlap | none
	LicensePlate *IdentifierEvidence   `json:"license_plate,omitempty"`
	SerialNumber *IdentifierEvidence   `json:"serial_number,omitempty"`
	TextOverlap  *TextOverlapEvidence  `json:"text_overlap,omitempty"`
}

const (
	DetailsNone         = "none"
	DetailsLicensePlate = "license_plate"
	DetailsSerialNumber = "serial_number"
	DetailsTextOverlap  = "text_overlap"
)

// IdentifierEvidence records a verbatim structured-identifier match.
type IdentifierEvidence struct {
	Value string `json:"value"`
}

// TextOverlapEvidence records the shared OCR tokens behind a text score.
type TextOverlapEvidence struct {
	Tokens []string `json:"tokens"`
}

// SideFeedback is one side's review response, retained permanently.
type SideFeedback struct {
	Verdict    Verdict        `json:"verdict,omitempty"`
	Reasons    []RejectReason `json:"reasons,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	RecordedAt *time.Time     `json:"recorded_at,omitempty"`
}

// PhotoMatch links two photos from opposite-type cases with similarity
// scores and review state. The ordered (SourcePhotoID, TargetPhotoID)
// pair is unique across all rows.
type PhotoMatch struct {
	ID uuid.UUID `json:"id" db:"id"`

	SourcePhotoID uuid.UUID `json:"source_photo_id" db:"source_photo_id"`
	SourceCaseID  uuid.UUID `json:"source_case_id" db:"source_case_id"`
	TargetPhotoID uuid.UUID `json:"target_photo_id" db:"target_photo_id"`
	TargetCaseID  uuid.UUID `json:"target_case_id" db:"target_case_id"`

	OverallScore       int          `json:"overall_score" db:"overall_score"`
	Scores             SubScores    `json:"scores"`
	MatchType          MatchType    `json:"match_type" db:"match_type"`
	Details            MatchDetails `json:"match_details"`
	MatchedIdentifiers []string     `json:"matched_identifiers,omitempty"`

	LocationScore *int     `json:"location_score,omitempty" db:"location_score"`
	DistanceKM    *float64 `json:"distance_km,omitempty" db:"distance_km"`

	Status         MatchStatus `json:"status" db:"status"`
	SourceNotified bool        `json:"source_notified" db:"source_notified"`
	TargetNotified bool        `json:"target_notified" db:"target_notified"`
	NotifiedAt     *time.Time  `json:"notified_at,omitempty" db:"notified_at"`
	ViewedAt       *time.Time  `json:"viewed_at,omitempty" db:"viewed_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`

	SourceFeedback SideFeedback `json:"source_feedback"`
	TargetFeedback SideFeedback `json:"target_feedback"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
