package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/storage"
)

// CandidateStore is the slice of the store the generator needs.
type CandidateStore interface {
	FindCandidates(ctx context.Context, q storage.CandidateQuery, srcEmbedding []float32) ([]storage.Candidate, error)
}

// Generator finds the bounded, ordered set of opposite-type photos worth
// precise scoring for a given source photo. Cheap pre-filters (category,
// geography, recency) run in SQL; the proxy rank and top-K cut run here.
// The result is deterministic for a given store state: the rank is a
// pure function and ties break on photo id.
type Generator struct {
	store CandidateStore
	cfg   config.MatchingConfig
}

func NewGenerator(store CandidateStore, cfg config.MatchingConfig) *Generator {
	return &Generator{store: store, cfg: cfg}
}

// Generate returns up to TopK candidates for the photo, ranked by proxy
// score. Photos of the source case itself are never returned.
func (g *Generator) Generate(ctx context.Context, photo *models.Photo, cse *models.Case) ([]storage.Candidate, error) {
	q := storage.CandidateQuery{
		SourcePhotoID: photo.ID,
		SourceCaseID:  cse.ID,
		OppositeLost:  !cse.Type.IsLostSide(),
		Category:      cse.Category,
		Lat:           cse.Lat,
		Lon:           cse.Lon,
		RadiusKM:      g.cfg.MaxRadiusKM,
		Since:         time.Now().Add(-g.cfg.RecencyWindow),
		Limit:         g.cfg.FetchLimit,
	}

	candidates, err := g.store.FindCandidates(ctx, q, photo.Features.Embedding)
	if err != nil {
		return nil, fmt.Errorf("candidate lookup: %w", err)
	}

	ranked := RankCandidates(g.cfg, photo, cse, candidates)
	if len(ranked) > g.cfg.TopK {
		ranked = ranked[:g.cfg.TopK]
	}
	return ranked, nil
}

// RankCandidates orders candidates by proxy score (best first) with a
// stable photo-id tiebreak, dropping duplicates and same-case photos.
func RankCandidates(cfg config.MatchingConfig, photo *models.Photo, cse *models.Case, in []storage.Candidate) []storage.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]storage.Candidate, 0, len(in))
	for _, c := range in {
		if c.Photo.CaseID == cse.ID || c.Photo.ID == photo.ID {
			continue
		}
		key := c.Photo.ID.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si := proxyScore(cfg, photo, cse, &out[i])
		sj := proxyScore(cfg, photo, cse, &out[j])
		if si != sj {
			return si > sj
		}
		return out[i].Photo.ID.String() < out[j].Photo.ID.String()
	})
	return out
}

// proxyScore is the cheap pre-ranking heuristic: exact category match,
// location proximity and coarse colour-bucket equality. It never touches
// the expensive signals.
func proxyScore(cfg config.MatchingConfig, photo *models.Photo, cse *models.Case, cand *storage.Candidate) float64 {
	var s float64

	if cse.Category != "" && cand.Category == cse.Category {
		s += 40
	}
	if cse.HasLocation() && cand.Lat != nil && cand.Lon != nil {
		km := haversineKM(*cse.Lat, *cse.Lon, *cand.Lat, *cand.Lon)
		if km < cfg.MaxRadiusKM {
			s += 40 * (1 - km/cfg.MaxRadiusKM)
		}
	}
	if photo.Features.ColorBucket >= 0 && photo.Features.ColorBucket == cand.Photo.Features.ColorBucket {
		s += 20
	}
	return s
}
