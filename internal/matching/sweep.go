package matching

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
)

// SweepStore is the slice of the store the sweeper needs.
type SweepStore interface {
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]models.PhotoMatch, error)
	ExpireForCase(ctx context.Context, caseID uuid.UUID) ([]models.PhotoMatch, error)
}

// Sweeper expires unresolved matches past the retention window and
// matches whose underlying case closed. It is the only timeout policy
// in the engine; there is no per-request cancellation.
type Sweeper struct {
	db       SweepStore
	events   EventSink
	interval time.Duration
	window   time.Duration
}

func NewSweeper(db SweepStore, events EventSink, cfg config.MatchingConfig) *Sweeper {
	return &Sweeper{
		db:       db,
		events:   events,
		interval: cfg.SweepInterval,
		window:   cfg.RetentionWindow,
	}
}

// Run sweeps on a fixed cadence until the context is cancelled. Call in
// a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires every unresolved match older than the retention window.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.window)
	expired, err := s.db.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	s.emitExpired(ctx, expired)
	if len(expired) > 0 {
		slog.Info("expired stale matches", "count", len(expired), "cutoff", cutoff)
	}
	return nil
}

// ExpireCase expires every unresolved match touching a closed or
// deleted case.
func (s *Sweeper) ExpireCase(ctx context.Context, caseID uuid.UUID) error {
	expired, err := s.db.ExpireForCase(ctx, caseID)
	if err != nil {
		return err
	}
	s.emitExpired(ctx, expired)
	if len(expired) > 0 {
		slog.Info("expired matches for closed case", "case_id", caseID, "count", len(expired))
	}
	return nil
}

func (s *Sweeper) emitExpired(ctx context.Context, expired []models.PhotoMatch) {
	now := time.Now()
	for _, m := range expired {
		observability.MatchesExpired.Inc()
		observability.MatchesResolved.WithLabelValues(string(models.MatchStatusExpired)).Inc()
		if s.events == nil {
			continue
		}
		if err := s.events.PublishMatchEvent(ctx, models.MatchEventResolved, models.MatchEvent{
			Type:      models.MatchEventResolved,
			Match:     m,
			Timestamp: now,
		}); err != nil {
			slog.Error("publish expiry event", "error", err, "match_id", m.ID)
		}
	}
}
