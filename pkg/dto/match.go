package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/models"
)

type MatchResponse struct {
	ID            uuid.UUID `json:"id"`
	SourcePhotoID uuid.UUID `json:"source_photo_id"`
	SourceCaseID  uuid.UUID `json:"source_case_id"`
	TargetPhotoID uuid.UUID `json:"target_photo_id"`
	TargetCaseID  uuid.UUID `json:"target_case_id"`

	OverallScore       int                 `json:"overall_score"`
	Scores             models.SubScores    `json:"scores"`
	MatchType          string              `json:"match_type"`
	Details            models.MatchDetails `json:"match_details"`
	MatchedIdentifiers []string            `json:"matched_identifiers,omitempty"`
	LocationScore      *int                `json:"location_score,omitempty"`
	DistanceKM         *float64            `json:"distance_km,omitempty"`

	Status         string               `json:"status"`
	SourceNotified bool                 `json:"source_notified"`
	TargetNotified bool                 `json:"target_notified"`
	NotifiedAt     string               `json:"notified_at,omitempty"`
	ViewedAt       string               `json:"viewed_at,omitempty"`
	ResolvedAt     string               `json:"resolved_at,omitempty"`
	SourceFeedback *models.SideFeedback `json:"source_feedback,omitempty"`
	TargetFeedback *models.SideFeedback `json:"target_feedback,omitempty"`

	CreatedAt string `json:"created_at"`
}

type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Total   int             `json:"total"`
}

type FeedbackRequest struct {
	Side    string   `json:"side" binding:"required,oneof=source target"`
	Verdict string   `json:"verdict" binding:"required"`
	Reasons []string `json:"reasons"`
	Detail  string   `json:"detail"`
}

type NotifiedRequest struct {
	Side string `json:"side" binding:"required,oneof=source target"`
}

// WSEvent is a WebSocket message for real-time match delivery.
type WSEvent struct {
	Type         string        `json:"type"` // match_created, match_updated, match_resolved
	SourceCaseID uuid.UUID     `json:"source_case_id"`
	TargetCaseID uuid.UUID     `json:"target_case_id"`
	Data         MatchResponse `json:"data"`
}
