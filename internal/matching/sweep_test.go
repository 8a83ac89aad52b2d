package matching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
)

// fakeSweepStore is an in-memory SweepStore with the same bulk-expiry
// semantics as the real one: only unresolved matches move to expired.
type fakeSweepStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*models.PhotoMatch
}

func newFakeSweepStore() *fakeSweepStore {
	return &fakeSweepStore{matches: make(map[uuid.UUID]*models.PhotoMatch)}
}

func (f *fakeSweepStore) add(status models.MatchStatus, caseID uuid.UUID, age time.Duration) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.matches[id] = &models.PhotoMatch{
		ID:           id,
		SourceCaseID: caseID,
		Status:       status,
		CreatedAt:    time.Now().Add(-age),
	}
	return id
}

func (f *fakeSweepStore) status(id uuid.UUID) models.MatchStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[id].Status
}

func (f *fakeSweepStore) expire(match func(*models.PhotoMatch) bool) []models.PhotoMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []models.PhotoMatch
	for _, m := range f.matches {
		if m.Status.Terminal() || !match(m) {
			continue
		}
		m.Status = models.MatchStatusExpired
		expired = append(expired, *m)
	}
	return expired
}

func (f *fakeSweepStore) ExpireOlderThan(_ context.Context, cutoff time.Time) ([]models.PhotoMatch, error) {
	return f.expire(func(m *models.PhotoMatch) bool { return m.CreatedAt.Before(cutoff) }), nil
}

func (f *fakeSweepStore) ExpireForCase(_ context.Context, caseID uuid.UUID) ([]models.PhotoMatch, error) {
	return f.expire(func(m *models.PhotoMatch) bool {
		return m.SourceCaseID == caseID || m.TargetCaseID == caseID
	}), nil
}

func sweepCfg() config.MatchingConfig {
	cfg := testCfg()
	cfg.RetentionWindow = 24 * time.Hour
	cfg.SweepInterval = time.Hour
	return cfg
}

func TestSweepExpiresPastRetentionWindow(t *testing.T) {
	store := newFakeSweepStore()
	sink := &fakeSink{}
	sw := NewSweeper(store, sink, sweepCfg())
	ctx := context.Background()

	caseID := uuid.New()
	stale := store.add(models.MatchStatusPending, caseID, 48*time.Hour)
	fresh := store.add(models.MatchStatusPending, caseID, time.Hour)
	staleNotified := store.add(models.MatchStatusNotified, caseID, 48*time.Hour)

	require.NoError(t, sw.Sweep(ctx))

	assert.Equal(t, models.MatchStatusExpired, store.status(stale))
	assert.Equal(t, models.MatchStatusExpired, store.status(staleNotified))
	assert.Equal(t, models.MatchStatusPending, store.status(fresh))
	assert.Equal(t, []string{models.MatchEventResolved, models.MatchEventResolved}, sink.types())
}

func TestSweepLeavesResolvedMatchesAlone(t *testing.T) {
	store := newFakeSweepStore()
	sw := NewSweeper(store, &fakeSink{}, sweepCfg())

	caseID := uuid.New()
	confirmed := store.add(models.MatchStatusConfirmed, caseID, 48*time.Hour)
	rejected := store.add(models.MatchStatusRejected, caseID, 48*time.Hour)

	require.NoError(t, sw.Sweep(context.Background()))

	assert.Equal(t, models.MatchStatusConfirmed, store.status(confirmed))
	assert.Equal(t, models.MatchStatusRejected, store.status(rejected))
}

func TestExpireCase(t *testing.T) {
	store := newFakeSweepStore()
	sink := &fakeSink{}
	sw := NewSweeper(store, sink, sweepCfg())

	closed := uuid.New()
	other := uuid.New()
	inClosed := store.add(models.MatchStatusViewed, closed, time.Hour)
	inOther := store.add(models.MatchStatusViewed, other, time.Hour)

	require.NoError(t, sw.ExpireCase(context.Background(), closed))

	assert.Equal(t, models.MatchStatusExpired, store.status(inClosed))
	assert.Equal(t, models.MatchStatusViewed, store.status(inOther))
	assert.Equal(t, []string{models.MatchEventResolved}, sink.types())
}
