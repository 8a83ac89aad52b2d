package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
)

// InvalidTransitionError names the current and requested status of a
// rejected transition.
type InvalidTransitionError struct {
	From models.MatchStatus
	To   models.MatchStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// transitions is the one-directional state machine:
// pending -> notified -> viewed -> confirmed|rejected; any non-terminal
// state may expire. Terminal states have no outgoing edges here. The
// single exception, confirmed -> rejected on conflicting feedback, is
// applied by the FeedbackLoop under the row lock, never through
// Transition.
var transitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchStatusPending:  {models.MatchStatusNotified, models.MatchStatusViewed, models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired},
	models.MatchStatusNotified: {models.MatchStatusViewed, models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired},
	models.MatchStatusViewed:   {models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to models.MatchStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// LifecycleStore is the slice of the store the lifecycle needs.
type LifecycleStore interface {
	GetMatch(ctx context.Context, id uuid.UUID) (*models.PhotoMatch, error)
	TransitionMatch(ctx context.Context, id uuid.UUID, from, to models.MatchStatus) (bool, error)
	SetNotified(ctx context.Context, id uuid.UUID, side models.MatchSide) error
}

// EventSink publishes match lifecycle events for external collaborators.
type EventSink interface {
	PublishMatchEvent(ctx context.Context, eventType string, data interface{}) error
}

// Lifecycle drives a match through its review workflow. All status
// writes go through the store's compare-and-swap, so concurrent
// transitions on the same match serialize at the row.
type Lifecycle struct {
	store  LifecycleStore
	events EventSink
}

func NewLifecycle(store LifecycleStore, events EventSink) *Lifecycle {
	return &Lifecycle{store: store, events: events}
}

// Transition moves the match to the requested status, failing with
// InvalidTransitionError when the state machine forbids it.
func (l *Lifecycle) Transition(ctx context.Context, id uuid.UUID, to models.MatchStatus) (*models.PhotoMatch, error) {
	m, err := l.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("match %s not found", id)
	}

	if !CanTransition(m.Status, to) {
		return nil, &InvalidTransitionError{From: m.Status, To: to}
	}

	ok, err := l.store.TransitionMatch(ctx, id, m.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race: the status changed between read and CAS.
		current, err := l.store.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		from := m.Status
		if current != nil {
			from = current.Status
		}
		return nil, &InvalidTransitionError{From: from, To: to}
	}

	updated, err := l.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	l.emit(ctx, updated)
	return updated, nil
}

// MarkNotified records that a side's notification was dispatched
// (acknowledged by the external dispatcher) and, on the first ack,
// moves the match from pending to notified. Later acks for the other
// side only set the flag.
func (l *Lifecycle) MarkNotified(ctx context.Context, id uuid.UUID, side models.MatchSide) (*models.PhotoMatch, error) {
	if err := l.store.SetNotified(ctx, id, side); err != nil {
		return nil, err
	}

	m, err := l.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("match %s not found", id)
	}
	if m.Status != models.MatchStatusPending {
		return m, nil
	}
	return l.Transition(ctx, id, models.MatchStatusNotified)
}

// MarkViewed records that the match was opened in the review surface.
func (l *Lifecycle) MarkViewed(ctx context.Context, id uuid.UUID) (*models.PhotoMatch, error) {
	return l.Transition(ctx, id, models.MatchStatusViewed)
}

func (l *Lifecycle) emit(ctx context.Context, m *models.PhotoMatch) {
	if m == nil || l.events == nil {
		return
	}
	eventType := models.MatchEventUpdated
	if m.Status.Terminal() {
		eventType = models.MatchEventResolved
		observability.MatchesResolved.WithLabelValues(string(m.Status)).Inc()
	}
	_ = l.events.PublishMatchEvent(ctx, eventType, models.MatchEvent{
		Type:      eventType,
		Match:     *m,
		Timestamp: m.UpdatedAt,
	})
}
