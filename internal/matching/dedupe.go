package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/storage"
)

// UpsertOutcome reports what the deduplicator did with a scored pair.
type UpsertOutcome string

const (
	OutcomeCreated  UpsertOutcome = "created"
	OutcomeRescored UpsertOutcome = "rescored"
	OutcomeSkipped  UpsertOutcome = "skipped"
)

// MatchStore is the slice of the store the deduplicator needs.
type MatchStore interface {
	InsertMatch(ctx context.Context, m *models.PhotoMatch) (bool, error)
	UpdateMatchScores(ctx context.Context, m *models.PhotoMatch) error
}

// Deduplicator enforces at most one match row per ordered photo pair.
// It never takes an in-process lock: the store's unique index on the
// pair is the arbiter, and an insert that loses the race converts into
// a re-score update of the surviving row.
type Deduplicator struct {
	store    MatchStore
	minScore int
}

func NewDeduplicator(store MatchStore, minScore int) *Deduplicator {
	return &Deduplicator{store: store, minScore: minScore}
}

// Upsert creates a new pending match, or re-scores the existing row for
// the pair. New rows are only created at or above the minimum score
// floor; existing rows are always re-scored so stored scores track the
// latest features. Re-scoring never touches status, notification flags
// or feedback.
func (d *Deduplicator) Upsert(ctx context.Context, m *models.PhotoMatch) (UpsertOutcome, error) {
	if m.OverallScore >= d.minScore {
		created, err := d.store.InsertMatch(ctx, m)
		if err != nil {
			return "", fmt.Errorf("create match: %w", err)
		}
		if created {
			return OutcomeCreated, nil
		}
		// Lost the insert race or the pair was scored before: re-score.
		if err := d.store.UpdateMatchScores(ctx, m); err != nil {
			return "", fmt.Errorf("rescore match: %w", err)
		}
		return OutcomeRescored, nil
	}

	// Below the creation floor: only update a pair that already exists.
	err := d.store.UpdateMatchScores(ctx, m)
	if errors.Is(err, storage.ErrMatchNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("rescore match: %w", err)
	}
	return OutcomeRescored, nil
}
