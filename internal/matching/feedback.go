package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
)

// ValidationError rejects malformed feedback at the boundary, before it
// reaches the store.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// FeedbackStore is the slice of the store the feedback loop needs.
// RecordFeedback applies the side's verdict under the match row lock
// and calls resolve with the locked row, verdict included, to decide
// the status change. Resolving against the locked state keeps a
// concurrent submission from the other side from resolving against a
// snapshot that is already stale.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, id uuid.UUID, side models.MatchSide, fb models.SideFeedback, resolve func(*models.PhotoMatch) *models.MatchStatus) (*models.PhotoMatch, error)
}

// FeedbackLoop records per-side review verdicts and resolves the match
// status from them. Feedback is retained permanently for later weight
// recalibration, even on matches that subsequently expire.
type FeedbackLoop struct {
	store  FeedbackStore
	events EventSink
}

func NewFeedbackLoop(store FeedbackStore, events EventSink) *FeedbackLoop {
	return &FeedbackLoop{store: store, events: events}
}

// Submit validates and records one side's feedback. Recording from one
// side never requires the other side's feedback. The status resolution
// is conservative: a rejection from either side wins over a
// confirmation from the other, because matching the wrong item costs
// more than missing one.
func (f *FeedbackLoop) Submit(ctx context.Context, matchID uuid.UUID, side models.MatchSide, verdict models.Verdict, reasons []models.RejectReason, detail string) (*models.PhotoMatch, error) {
	if side != models.SideSource && side != models.SideTarget {
		return nil, &ValidationError{Field: "side", Value: string(side)}
	}
	switch verdict {
	case models.VerdictConfirmed, models.VerdictRejected, models.VerdictUnsure:
	default:
		return nil, &ValidationError{Field: "verdict", Value: string(verdict)}
	}
	for _, r := range reasons {
		if !models.KnownReason(r) {
			return nil, &ValidationError{Field: "reason", Value: string(r)}
		}
	}

	// The status resolution runs inside the store's row lock so it sees
	// both sides' committed verdicts, never a pre-submit snapshot.
	var newStatus *models.MatchStatus
	now := time.Now()
	updated, err := f.store.RecordFeedback(ctx, matchID, side, models.SideFeedback{
		Verdict:    verdict,
		Reasons:    reasons,
		Detail:     detail,
		RecordedAt: &now,
	}, func(m *models.PhotoMatch) *models.MatchStatus {
		newStatus = resolveStatus(m.Status, m.SourceFeedback.Verdict, m.TargetFeedback.Verdict)
		return newStatus
	})
	if err != nil {
		return nil, err
	}

	if newStatus != nil {
		observability.MatchesResolved.WithLabelValues(string(*newStatus)).Inc()
		if f.events != nil {
			_ = f.events.PublishMatchEvent(ctx, models.MatchEventResolved, models.MatchEvent{
				Type:      models.MatchEventResolved,
				Match:     *updated,
				Timestamp: now,
			})
		}
	}
	return updated, nil
}

// resolveStatus computes the status change a feedback submission causes,
// or nil for no change. Rejection from either side always wins;
// expiry is never undone.
func resolveStatus(current models.MatchStatus, src, tgt models.Verdict) *models.MatchStatus {
	if current == models.MatchStatusExpired {
		return nil
	}

	var next models.MatchStatus
	switch {
	case src == models.VerdictRejected || tgt == models.VerdictRejected:
		next = models.MatchStatusRejected
	case src == models.VerdictConfirmed || tgt == models.VerdictConfirmed:
		next = models.MatchStatusConfirmed
	default:
		return nil // unsure or no verdict yet
	}

	if next == current {
		return nil
	}
	// A later confirmation never reopens a rejected match.
	if current == models.MatchStatusRejected {
		return nil
	}
	return &next
}
