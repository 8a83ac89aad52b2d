package matching

import (
	"math"
	"sort"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/features"
	"github.com/your-org/reclaim/internal/models"
)

// PairScore is the full scoring result for one photo pair.
type PairScore struct {
	Scores             models.SubScores
	Overall            int
	MatchType          models.MatchType
	Details            models.MatchDetails
	MatchedIdentifiers []string
	LocationScore      *int
	DistanceKM         *float64
}

// HasSignal reports whether at least one sub-score was computable.
func (p *PairScore) HasSignal() bool {
	s := &p.Scores
	return s.Embedding != nil || s.Hash != nil || s.Text != nil ||
		s.Color != nil || s.Visual != nil || s.Shape != nil
}

// ScorePair computes the six sub-scores between two FeatureSets and
// combines them into one overall score. It is a pure function of its
// inputs: same features and locations, same result. A signal missing on
// either side yields a nil sub-score and contributes no weight; the
// weights of present signals are renormalized to sum to 1. The location
// score is informational only and never part of the overall score.
func ScorePair(cfg config.MatchingConfig, src, tgt *models.FeatureSet, srcCase, tgtCase *models.Case) PairScore {
	var ps PairScore

	if src.PHash != "" && tgt.PHash != "" {
		if d := features.HammingDistance(src.PHash, tgt.PHash); d >= 0 {
			ps.Scores.Hash = intp(linearScore(float64(d), float64(cfg.MaxHashDistance)))
		}
	}

	if src.AvgColor != nil && tgt.AvgColor != nil {
		d := colorDistance(*src.AvgColor, *tgt.AvgColor)
		ps.Scores.Color = intp(linearScore(d, cfg.MaxColorDist))
	}

	if len(src.OCRTokens) > 0 && len(tgt.OCRTokens) > 0 {
		score, shared, ids := textScore(src, tgt)
		ps.Scores.Text = intp(score)
		ps.MatchedIdentifiers = ids
		ps.Details = buildDetails(shared, ids)
	}

	if len(src.LumaHist) > 0 && len(src.LumaHist) == len(tgt.LumaHist) {
		ps.Scores.Visual = intp(clampScore(int(math.Round(histIntersection(src.LumaHist, tgt.LumaHist) * 100))))
	}

	if len(src.Shape) > 0 && len(src.Shape) == len(tgt.Shape) {
		cos := cosineSimilarity(src.Shape, tgt.Shape)
		ps.Scores.Shape = intp(clampScore(int(math.Round(cos * 100))))
	}

	if len(src.Embedding) > 0 && len(src.Embedding) == len(tgt.Embedding) {
		cos := cosineSimilarity(src.Embedding, tgt.Embedding)
		ps.Scores.Embedding = intp(clampScore(int(math.Round((cos + 1) / 2 * 100))))
	}

	ps.Overall = overallScore(cfg.Weights, &ps.Scores)
	ps.MatchType = decideMatchType(cfg, &ps, srcCase, tgtCase)

	if srcCase.HasLocation() && tgtCase.HasLocation() {
		km := haversineKM(*srcCase.Lat, *srcCase.Lon, *tgtCase.Lat, *tgtCase.Lon)
		ps.DistanceKM = &km
		ps.LocationScore = intp(linearScore(km, cfg.MaxRadiusKM))
	}

	return ps
}

// overallScore combines present sub-scores using weights renormalized
// over the signals actually present.
func overallScore(w config.WeightsConfig, s *models.SubScores) int {
	type pair struct {
		score  *int
		weight float64
	}
	pairs := []pair{
		{s.Embedding, w.Embedding},
		{s.Hash, w.Hash},
		{s.Text, w.Text},
		{s.Color, w.Color},
		{s.Visual, w.Visual},
		{s.Shape, w.Shape},
	}

	var sum, weightSum float64
	for _, p := range pairs {
		if p.score == nil {
			continue
		}
		sum += float64(*p.score) * p.weight
		weightSum += p.weight
	}
	if weightSum == 0 {
		return 0
	}
	return clampScore(int(math.Round(sum / weightSum)))
}

// decideMatchType names the dominant signal. Verbatim identifier matches
// override everything; three or more signals near the maximum make a
// combined match; shape and colour jointly dominant mark a pattern
// match; a pet case whose strongest evidence is the embedding is a pet
// match.
func decideMatchType(cfg config.MatchingConfig, ps *PairScore, srcCase, tgtCase *models.Case) models.MatchType {
	if len(ps.MatchedIdentifiers) > 0 {
		if features.IsSerialLike(ps.MatchedIdentifiers[0]) {
			return models.MatchTypeSerialNumber
		}
		return models.MatchTypeLicensePlate
	}

	type entry struct {
		t models.MatchType
		v int
	}
	var entries []entry
	add := func(t models.MatchType, v *int) {
		if v != nil {
			entries = append(entries, entry{t, *v})
		}
	}
	add(models.MatchTypeImageDNA, ps.Scores.Embedding)
	add(models.MatchTypeHash, ps.Scores.Hash)
	add(models.MatchTypeText, ps.Scores.Text)
	add(models.MatchTypeColor, ps.Scores.Color)
	add(models.MatchTypeVisual, ps.Scores.Visual)
	add(models.MatchTypeShape, ps.Scores.Shape)

	if len(entries) == 0 {
		return models.MatchTypeCombined
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].v != entries[j].v {
			return entries[i].v > entries[j].v
		}
		return entries[i].t < entries[j].t
	})

	max := entries[0].v
	dominant := map[models.MatchType]bool{}
	for _, e := range entries {
		if max-e.v <= cfg.CombinedMargin {
			dominant[e.t] = true
		}
	}

	if len(dominant) >= 3 {
		return models.MatchTypeCombined
	}
	if dominant[models.MatchTypeShape] && dominant[models.MatchTypeColor] && len(dominant) == 2 {
		return models.MatchTypePattern
	}
	if entries[0].t == models.MatchTypeImageDNA &&
		(srcCase.Type == models.CaseTypePet || tgtCase.Type == models.CaseTypePet) {
		return models.MatchTypePet
	}
	return entries[0].t
}

// textScore computes weighted Jaccard overlap of the token sets; tokens
// that look like identifiers weigh triple. A verbatim identifier match
// forces the score to at least 95.
func textScore(src, tgt *models.FeatureSet) (score int, shared []string, matchedIDs []string) {
	weight := func(tok string, ids []string) float64 {
		for _, id := range ids {
			if tok == id {
				return 3
			}
		}
		return 1
	}

	tgtSet := make(map[string]struct{}, len(tgt.OCRTokens))
	for _, t := range tgt.OCRTokens {
		tgtSet[t] = struct{}{}
	}

	var inter, union float64
	for _, t := range src.OCRTokens {
		w := weight(t, src.Identifiers)
		union += w
		if _, ok := tgtSet[t]; ok {
			inter += w
			shared = append(shared, t)
		}
	}
	srcSet := make(map[string]struct{}, len(src.OCRTokens))
	for _, t := range src.OCRTokens {
		srcSet[t] = struct{}{}
	}
	for _, t := range tgt.OCRTokens {
		if _, ok := srcSet[t]; !ok {
			union += weight(t, tgt.Identifiers)
		}
	}

	if union > 0 {
		score = clampScore(int(math.Round(inter / union * 100)))
	}

	for _, id := range src.Identifiers {
		for _, other := range tgt.Identifiers {
			if id == other {
				matchedIDs = append(matchedIDs, id)
			}
		}
	}
	if len(matchedIDs) > 0 && score < 95 {
		score = 95
	}
	return score, shared, matchedIDs
}

func buildDetails(shared, ids []string) models.MatchDetails {
	if len(ids) > 0 {
		ev := &models.IdentifierEvidence{Value: ids[0]}
		if features.IsSerialLike(ids[0]) {
			return models.MatchDetails{Kind: models.DetailsSerialNumber, SerialNumber: ev}
		}
		return models.MatchDetails{Kind: models.DetailsLicensePlate, LicensePlate: ev}
	}
	if len(shared) > 0 {
		return models.MatchDetails{Kind: models.DetailsTextOverlap, TextOverlap: &models.TextOverlapEvidence{Tokens: shared}}
	}
	return models.MatchDetails{Kind: models.DetailsNone}
}

// linearScore maps a distance onto 0-100: zero distance scores 100,
// distances at or beyond max score 0.
func linearScore(dist, max float64) int {
	if max <= 0 || dist >= max {
		return 0
	}
	if dist <= 0 {
		return 100
	}
	return clampScore(int(math.Round(100 - dist/max*100)))
}

func colorDistance(a, b [3]uint8) float64 {
	dr := float64(a[0]) - float64(b[0])
	dg := float64(a[1]) - float64(b[1])
	db := float64(a[2]) - float64(b[2])
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func histIntersection(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Min(float64(a[i]), float64(b[i]))
	}
	return sum
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// haversineKM returns the great-circle distance between two points.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func intp(v int) *int {
	return &v
}
