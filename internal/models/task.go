package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoTask is the message published to NATS when a photo upload
// completes and the matching pipeline should run.
type PhotoTask struct {
	PhotoID   uuid.UUID `json:"photo_id"`
	CaseID    uuid.UUID `json:"case_id"`
	ObjectKey string    `json:"object_key"`
	Timestamp time.Time `json:"timestamp"`
}

// CaseControl is published on the control subject when a case closes or
// is deleted; the worker expires every match touching the case.
type CaseControl struct {
	Action string    `json:"action"` // closed | deleted
	CaseID uuid.UUID `json:"case_id"`
}

// Match event types carried on the MATCHES stream.
const (
	MatchEventCreated  = "match_created"
	MatchEventUpdated  = "match_updated"
	MatchEventResolved = "match_resolved"
)

// MatchEvent is the outbound snapshot consumed by the notification
// dispatcher, the audit store, and the API WebSocket hub.
type MatchEvent struct {
	Type      string     `json:"type"`
	Match     PhotoMatch `json:"match"`
	Timestamp time.Time  `json:"timestamp"`
}
