package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/features"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
	"github.com/your-org/reclaim/internal/storage"
)

// PipelineStore is the slice of the store one unit of work needs:
// photo and case reads, feature persistence, candidate lookup and the
// deduplicated match writes.
type PipelineStore interface {
	CandidateStore
	MatchStore
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error)
	SaveFeatures(ctx context.Context, photoID uuid.UUID, fs *models.FeatureSet) error
	SetPhotoStatus(ctx context.Context, photoID uuid.UUID, status models.PhotoStatus) error
}

// ObjectStore loads photo pixel data by object key.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Pipeline runs one matching unit of work per photo-ready task:
// extract -> candidates -> score -> dedupe -> emit. Many units run
// concurrently across different photos; within one unit the pairwise
// comparisons are parallelized up to ScoreWorkers and collected before
// any store mutation.
type Pipeline struct {
	extractor *features.Extractor
	generator *Generator
	dedupe    *Deduplicator
	db        PipelineStore
	photos    ObjectStore
	producer  EventSink
	cfg       config.MatchingConfig
}

func NewPipeline(
	cfg config.MatchingConfig,
	extractor *features.Extractor,
	db PipelineStore,
	photos ObjectStore,
	producer EventSink,
) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		generator: NewGenerator(db, cfg),
		dedupe:    NewDeduplicator(db, cfg.MinScore),
		db:        db,
		photos:    photos,
		producer:  producer,
		cfg:       cfg,
	}
}

// ProcessPhoto handles one photo-ready task. Returned errors cause the
// queue to redeliver the task with backoff; permanent conditions
// (missing photo, undecodable image, no extractable signal) are logged
// and swallowed so the task is not retried.
func (p *Pipeline) ProcessPhoto(ctx context.Context, task models.PhotoTask) error {
	photo, err := p.db.GetPhoto(ctx, task.PhotoID)
	if err != nil {
		return fmt.Errorf("load photo: %w", err)
	}
	if photo == nil {
		slog.Warn("photo task for unknown photo, skipping", "photo_id", task.PhotoID)
		observability.PhotosProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	cse, err := p.db.GetCase(ctx, photo.CaseID)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}
	if cse == nil || cse.Status != models.CaseStatusOpen {
		slog.Info("case missing or closed, skipping photo", "photo_id", photo.ID)
		observability.PhotosProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	fs, err := p.extractFeatures(ctx, photo)
	if err != nil {
		return err
	}
	if fs == nil {
		return nil
	}
	photo.Features = *fs

	start := time.Now()
	candidates, err := p.generator.Generate(ctx, photo, cse)
	if err != nil {
		return err
	}
	observability.PipelineDuration.WithLabelValues("candidates").Observe(time.Since(start).Seconds())

	if len(candidates) == 0 {
		observability.PhotosProcessed.WithLabelValues("no_candidates").Inc()
		return nil
	}

	results := p.scoreAll(photo, cse, candidates)

	for _, r := range results {
		if !r.score.HasSignal() {
			slog.Debug("no comparable signals for pair, skipping",
				"source", photo.ID, "target", r.cand.Photo.ID)
			continue
		}

		m := &models.PhotoMatch{
			SourcePhotoID:      photo.ID,
			SourceCaseID:       cse.ID,
			TargetPhotoID:      r.cand.Photo.ID,
			TargetCaseID:       r.cand.Photo.CaseID,
			OverallScore:       r.score.Overall,
			Scores:             r.score.Scores,
			MatchType:          r.score.MatchType,
			Details:            r.score.Details,
			MatchedIdentifiers: r.score.MatchedIdentifiers,
			LocationScore:      r.score.LocationScore,
			DistanceKM:         r.score.DistanceKM,
		}

		outcome, err := p.dedupe.Upsert(ctx, m)
		if err != nil {
			return err
		}
		observability.MatchesCreated.WithLabelValues(string(outcome)).Inc()

		switch outcome {
		case OutcomeCreated:
			p.publish(ctx, models.MatchEventCreated, m)
		case OutcomeRescored:
			p.publish(ctx, models.MatchEventUpdated, m)
		}
	}

	observability.PhotosProcessed.WithLabelValues("ok").Inc()
	return nil
}

// extractFeatures loads pixels, derives the FeatureSet and persists it.
// Returns (nil, nil) for permanent skips.
func (p *Pipeline) extractFeatures(ctx context.Context, photo *models.Photo) (*models.FeatureSet, error) {
	data, err := p.photos.GetObject(ctx, photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("load photo object: %w", err)
	}

	start := time.Now()
	fs, err := p.extractor.Extract(data)
	if err != nil {
		slog.Warn("photo undecodable, marking failed", "photo_id", photo.ID, "error", err)
		if err := p.db.SetPhotoStatus(ctx, photo.ID, models.PhotoStatusFailed); err != nil {
			return nil, fmt.Errorf("mark photo failed: %w", err)
		}
		observability.PhotosProcessed.WithLabelValues("failed").Inc()
		return nil, nil
	}
	observability.PipelineDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	if err := p.db.SaveFeatures(ctx, photo.ID, fs); err != nil {
		return nil, fmt.Errorf("persist features: %w", err)
	}

	if !fs.HasAny() {
		slog.Info("no extractable signal, photo will not match", "photo_id", photo.ID)
		observability.PhotosProcessed.WithLabelValues("no_signal").Inc()
		return nil, nil
	}
	return fs, nil
}

type scoredCandidate struct {
	cand  storage.Candidate
	score PairScore
}

// scoreAll runs the pairwise comparisons in parallel and collects every
// result before the caller mutates the store.
func (p *Pipeline) scoreAll(photo *models.Photo, cse *models.Case, candidates []storage.Candidate) []scoredCandidate {
	workers := p.cfg.ScoreWorkers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	jobs := make(chan int)
	results := make([]scoredCandidate, len(candidates))

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				cand := candidates[i]
				candCase := &models.Case{
					ID:       cand.Photo.CaseID,
					Type:     cand.CaseType,
					Category: cand.Category,
					Lat:      cand.Lat,
					Lon:      cand.Lon,
				}
				results[i] = scoredCandidate{
					cand:  cand,
					score: ScorePair(p.cfg, &photo.Features, &cand.Photo.Features, cse, candCase),
				}
				observability.CandidatesScored.Inc()
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	observability.PipelineDuration.WithLabelValues("score").Observe(time.Since(start).Seconds())

	return results
}

func (p *Pipeline) publish(ctx context.Context, eventType string, m *models.PhotoMatch) {
	if p.producer == nil {
		return
	}
	err := p.producer.PublishMatchEvent(ctx, eventType, models.MatchEvent{
		Type:      eventType,
		Match:     *m,
		Timestamp: time.Now(),
	})
	if err != nil {
		slog.Error("publish match event", "error", err, "match_id", m.ID)
	}
}

// Close releases the extractor's ONNX sessions.
func (p *Pipeline) Close() {
	if p.extractor != nil {
		p.extractor.Close()
	}
}
