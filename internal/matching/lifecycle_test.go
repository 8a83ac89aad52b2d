package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reclaim/internal/models"
)

// fakeMatchStore is an in-memory LifecycleStore and FeedbackStore with
// the same compare-and-swap semantics as the real one.
type fakeMatchStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*models.PhotoMatch
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{matches: make(map[uuid.UUID]*models.PhotoMatch)}
}

func (f *fakeMatchStore) add(status models.MatchStatus) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.matches[id] = &models.PhotoMatch{ID: id, Status: status}
	return id
}

func (f *fakeMatchStore) GetMatch(_ context.Context, id uuid.UUID) (*models.PhotoMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchStore) TransitionMatch(_ context.Context, id uuid.UUID, from, to models.MatchStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (f *fakeMatchStore) SetNotified(_ context.Context, id uuid.UUID, side models.MatchSide) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return ErrFakeNotFound
	}
	if side == models.SideSource {
		m.SourceNotified = true
	} else {
		m.TargetNotified = true
	}
	return nil
}

// RecordFeedback holds the store mutex across the read, the resolve
// callback and the status write, the same serialization the real store
// gets from its row lock.
func (f *fakeMatchStore) RecordFeedback(_ context.Context, id uuid.UUID, side models.MatchSide, fb models.SideFeedback, resolve func(*models.PhotoMatch) *models.MatchStatus) (*models.PhotoMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, ErrFakeNotFound
	}
	if side == models.SideSource {
		m.SourceFeedback = fb
	} else {
		m.TargetFeedback = fb
	}
	if resolve != nil {
		if newStatus := resolve(m); newStatus != nil {
			m.Status = *newStatus
		}
	}
	cp := *m
	return &cp, nil
}

var ErrFakeNotFound = assert.AnError

// fakeSink records published match events.
type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSink) PublishMatchEvent(_ context.Context, eventType string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeSink) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestCanTransitionTable(t *testing.T) {
	allowed := []struct{ from, to models.MatchStatus }{
		{models.MatchStatusPending, models.MatchStatusNotified},
		{models.MatchStatusPending, models.MatchStatusExpired},
		{models.MatchStatusNotified, models.MatchStatusViewed},
		{models.MatchStatusNotified, models.MatchStatusRejected},
		{models.MatchStatusViewed, models.MatchStatusConfirmed},
		{models.MatchStatusViewed, models.MatchStatusExpired},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	forbidden := []struct{ from, to models.MatchStatus }{
		{models.MatchStatusNotified, models.MatchStatusPending},
		{models.MatchStatusViewed, models.MatchStatusNotified},
		{models.MatchStatusConfirmed, models.MatchStatusPending},
		{models.MatchStatusConfirmed, models.MatchStatusRejected},
		{models.MatchStatusRejected, models.MatchStatusConfirmed},
		{models.MatchStatusExpired, models.MatchStatusPending},
		{models.MatchStatusExpired, models.MatchStatusConfirmed},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []models.MatchStatus{
		models.MatchStatusPending, models.MatchStatusNotified, models.MatchStatusViewed,
		models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired,
	}
	for _, terminal := range []models.MatchStatus{models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestTransitionFullChain(t *testing.T) {
	store := newFakeMatchStore()
	sink := &fakeSink{}
	lc := NewLifecycle(store, sink)
	ctx := context.Background()

	id := store.add(models.MatchStatusPending)

	m, err := lc.Transition(ctx, id, models.MatchStatusNotified)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusNotified, m.Status)

	m, err = lc.Transition(ctx, id, models.MatchStatusViewed)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusViewed, m.Status)

	m, err = lc.Transition(ctx, id, models.MatchStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusConfirmed, m.Status)

	assert.Equal(t, []string{
		models.MatchEventUpdated, models.MatchEventUpdated, models.MatchEventResolved,
	}, sink.types())
}

func TestTransitionInvalid(t *testing.T) {
	store := newFakeMatchStore()
	lc := NewLifecycle(store, nil)
	ctx := context.Background()

	id := store.add(models.MatchStatusConfirmed)

	_, err := lc.Transition(ctx, id, models.MatchStatusPending)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.MatchStatusConfirmed, terr.From)
	assert.Equal(t, models.MatchStatusPending, terr.To)

	// The stored status never moved.
	m, err := store.GetMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusConfirmed, m.Status)
}

func TestTransitionUnknownMatch(t *testing.T) {
	lc := NewLifecycle(newFakeMatchStore(), nil)
	_, err := lc.Transition(context.Background(), uuid.New(), models.MatchStatusNotified)
	require.Error(t, err)
}

func TestMarkNotifiedFirstAckMovesOutOfPending(t *testing.T) {
	store := newFakeMatchStore()
	lc := NewLifecycle(store, &fakeSink{})
	ctx := context.Background()

	id := store.add(models.MatchStatusPending)

	m, err := lc.MarkNotified(ctx, id, models.SideSource)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusNotified, m.Status)
	assert.True(t, m.SourceNotified)
	assert.False(t, m.TargetNotified)

	// The second side's ack only sets the flag.
	m, err = lc.MarkNotified(ctx, id, models.SideTarget)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusNotified, m.Status)
	assert.True(t, m.TargetNotified)
}

func TestMarkNotifiedAfterViewedKeepsStatus(t *testing.T) {
	store := newFakeMatchStore()
	lc := NewLifecycle(store, nil)
	ctx := context.Background()

	id := store.add(models.MatchStatusViewed)

	m, err := lc.MarkNotified(ctx, id, models.SideTarget)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusViewed, m.Status)
	assert.True(t, m.TargetNotified)
}

func TestMarkViewedFromNotified(t *testing.T) {
	store := newFakeMatchStore()
	lc := NewLifecycle(store, nil)

	id := store.add(models.MatchStatusNotified)
	m, err := lc.MarkViewed(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusViewed, m.Status)
}
