package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
)

func testCfg() config.MatchingConfig {
	return config.MatchingConfig{
		MinScore:        30,
		TopK:            25,
		FetchLimit:      200,
		MaxRadiusKM:     50,
		MaxHashDistance: 24,
		MaxColorDist:    120,
		CombinedMargin:  5,
		Weights: config.WeightsConfig{
			Embedding: 0.30,
			Hash:      0.20,
			Text:      0.20,
			Color:     0.10,
			Visual:    0.10,
			Shape:     0.10,
		},
	}
}

func openCase(t models.CaseType, category string) *models.Case {
	return &models.Case{Type: t, Category: category, Status: models.CaseStatusOpen}
}

func locatedCase(t models.CaseType, lat, lon float64) *models.Case {
	c := openCase(t, "")
	c.Lat, c.Lon = &lat, &lon
	return c
}

func TestScorePairIdenticalFeatures(t *testing.T) {
	fs := &models.FeatureSet{
		PHash:     "00ff00ff00ff00ff",
		AvgColor:  &[3]uint8{120, 80, 40},
		OCRTokens: []string{"acme", "backpack"},
		LumaHist:  []float32{0.5, 0.3, 0.2},
		Shape:     []float32{0.1, 0.4, 0.2, 0.3},
		Embedding: []float32{0.5, 0.5, 0.7071},
	}

	ps := ScorePair(testCfg(), fs, fs, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	require.NotNil(t, ps.Scores.Hash)
	require.NotNil(t, ps.Scores.Color)
	require.NotNil(t, ps.Scores.Text)
	require.NotNil(t, ps.Scores.Visual)
	require.NotNil(t, ps.Scores.Shape)
	require.NotNil(t, ps.Scores.Embedding)

	assert.Equal(t, 100, *ps.Scores.Hash)
	assert.Equal(t, 100, *ps.Scores.Color)
	assert.Equal(t, 100, *ps.Scores.Text)
	assert.Equal(t, 100, *ps.Scores.Visual)
	assert.Equal(t, 100, *ps.Scores.Shape)
	assert.Equal(t, 100, *ps.Scores.Embedding)
	assert.Equal(t, 100, ps.Overall)
}

func TestScorePairIsPure(t *testing.T) {
	src := &models.FeatureSet{
		PHash:    "00ff00ff00ff00ff",
		AvgColor: &[3]uint8{10, 10, 10},
		LumaHist: []float32{0.7, 0.3},
	}
	tgt := &models.FeatureSet{
		PHash:    "00ff00ff00ff00fe",
		AvgColor: &[3]uint8{12, 11, 9},
		LumaHist: []float32{0.6, 0.4},
	}
	a := openCase(models.CaseTypeLost, "bags")
	b := openCase(models.CaseTypeFound, "bags")

	first := ScorePair(testCfg(), src, tgt, a, b)
	second := ScorePair(testCfg(), src, tgt, a, b)
	assert.Equal(t, first, second)
}

func TestScorePairMissingSignalsRenormalize(t *testing.T) {
	// Only hash and color are computable; their weights renormalize so
	// two perfect signals still reach 100 overall.
	src := &models.FeatureSet{PHash: "00ff00ff00ff00ff", AvgColor: &[3]uint8{10, 10, 10}}
	tgt := &models.FeatureSet{PHash: "00ff00ff00ff00ff", AvgColor: &[3]uint8{10, 10, 10}}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	assert.Nil(t, ps.Scores.Embedding)
	assert.Nil(t, ps.Scores.Text)
	assert.Nil(t, ps.Scores.Visual)
	assert.Nil(t, ps.Scores.Shape)
	assert.Equal(t, 100, ps.Overall)
}

func TestScorePairNoSignals(t *testing.T) {
	ps := ScorePair(testCfg(), &models.FeatureSet{}, &models.FeatureSet{},
		openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	assert.False(t, ps.HasSignal())
	assert.Equal(t, 0, ps.Overall)
}

func TestScorePairNearIdenticalHashAndColor(t *testing.T) {
	// Same perceptual hash, barely different average colours: hash at
	// 100, colour in the high nineties, overall close to 100.
	src := &models.FeatureSet{PHash: "8f0e1d2c3b4a5968", AvgColor: &[3]uint8{10, 10, 10}}
	tgt := &models.FeatureSet{PHash: "8f0e1d2c3b4a5968", AvgColor: &[3]uint8{12, 11, 9}}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	require.NotNil(t, ps.Scores.Hash)
	require.NotNil(t, ps.Scores.Color)
	assert.Equal(t, 100, *ps.Scores.Hash)
	assert.GreaterOrEqual(t, *ps.Scores.Color, 95)
	assert.GreaterOrEqual(t, ps.Overall, 95)
	assert.Equal(t, models.MatchTypeHash, ps.MatchType)
}

func TestScorePairHashBeyondMaxDistance(t *testing.T) {
	// 64 differing bits, far past the 24-bit cutoff.
	src := &models.FeatureSet{PHash: "0000000000000000"}
	tgt := &models.FeatureSet{PHash: "ffffffffffffffff"}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	require.NotNil(t, ps.Scores.Hash)
	assert.Equal(t, 0, *ps.Scores.Hash)
}

func TestScorePairMalformedHashYieldsNoSignal(t *testing.T) {
	src := &models.FeatureSet{PHash: "not-a-hash"}
	tgt := &models.FeatureSet{PHash: "00ff00ff00ff00ff"}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))
	assert.Nil(t, ps.Scores.Hash)
}

func TestScorePairBoundsAllSubScores(t *testing.T) {
	src := &models.FeatureSet{
		PHash:     "0000000000000000",
		AvgColor:  &[3]uint8{0, 0, 0},
		OCRTokens: []string{"alpha"},
		LumaHist:  []float32{1, 0},
		Shape:     []float32{1, 0},
		Embedding: []float32{1, 0},
	}
	tgt := &models.FeatureSet{
		PHash:     "ffffffffffffffff",
		AvgColor:  &[3]uint8{255, 255, 255},
		OCRTokens: []string{"omega"},
		LumaHist:  []float32{0, 1},
		Shape:     []float32{0, 1},
		Embedding: []float32{-1, 0},
	}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	for name, s := range map[string]*int{
		"embedding": ps.Scores.Embedding,
		"hash":      ps.Scores.Hash,
		"text":      ps.Scores.Text,
		"color":     ps.Scores.Color,
		"visual":    ps.Scores.Visual,
		"shape":     ps.Scores.Shape,
	} {
		require.NotNil(t, s, name)
		assert.GreaterOrEqual(t, *s, 0, name)
		assert.LessOrEqual(t, *s, 100, name)
	}
	assert.GreaterOrEqual(t, ps.Overall, 0)
	assert.LessOrEqual(t, ps.Overall, 100)
}

func TestTextScoreIdentifierTriplesWeight(t *testing.T) {
	src := &models.FeatureSet{
		OCRTokens:   []string{"ab123cd", "black", "leather"},
		Identifiers: []string{"ab123cd"},
	}
	tgt := &models.FeatureSet{
		OCRTokens:   []string{"ab123cd", "red", "nylon"},
		Identifiers: []string{"ab123cd"},
	}

	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	require.NotNil(t, ps.Scores.Text)
	// Verbatim identifier match forces the text score to at least 95.
	assert.GreaterOrEqual(t, *ps.Scores.Text, 95)
	assert.Equal(t, []string{"ab123cd"}, ps.MatchedIdentifiers)
	assert.Equal(t, models.MatchTypeLicensePlate, ps.MatchType)
	require.NotNil(t, ps.Details.LicensePlate)
	assert.Equal(t, "ab123cd", ps.Details.LicensePlate.Value)
}

func TestMatchTypeSerialNumberOverride(t *testing.T) {
	src := &models.FeatureSet{
		OCRTokens:   []string{"sn12345678"},
		Identifiers: []string{"sn12345678"},
	}
	ps := ScorePair(testCfg(), src, src, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	assert.Equal(t, models.MatchTypeSerialNumber, ps.MatchType)
	require.NotNil(t, ps.Details.SerialNumber)
	assert.Equal(t, "sn12345678", ps.Details.SerialNumber.Value)
}

func TestMatchTypeCombined(t *testing.T) {
	// Hash, colour and visual all within the margin of the maximum.
	fs := &models.FeatureSet{
		PHash:    "00ff00ff00ff00ff",
		AvgColor: &[3]uint8{50, 50, 50},
		LumaHist: []float32{0.5, 0.5},
	}
	ps := ScorePair(testCfg(), fs, fs, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	assert.Equal(t, models.MatchTypeCombined, ps.MatchType)
}

func TestMatchTypePattern(t *testing.T) {
	// Shape and colour dominant together, everything else well below.
	src := &models.FeatureSet{
		PHash:    "0000000000000000",
		AvgColor: &[3]uint8{50, 50, 50},
		Shape:    []float32{0.2, 0.3, 0.5},
	}
	tgt := &models.FeatureSet{
		PHash:    "ffffffffffffffff",
		AvgColor: &[3]uint8{50, 50, 50},
		Shape:    []float32{0.2, 0.3, 0.5},
	}
	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypeLost, ""), openCase(models.CaseTypeFound, ""))

	assert.Equal(t, models.MatchTypePattern, ps.MatchType)
}

func TestMatchTypePet(t *testing.T) {
	src := &models.FeatureSet{
		PHash:     "0000000000000000",
		Embedding: []float32{0.3, 0.4, 0.5},
	}
	tgt := &models.FeatureSet{
		PHash:     "ffffffffffffffff",
		Embedding: []float32{0.3, 0.4, 0.5},
	}
	ps := ScorePair(testCfg(), src, tgt, openCase(models.CaseTypePet, ""), openCase(models.CaseTypeFound, ""))

	assert.Equal(t, models.MatchTypePet, ps.MatchType)
}

func TestLocationScoreInformationalOnly(t *testing.T) {
	fs := &models.FeatureSet{PHash: "00ff00ff00ff00ff"}

	near := ScorePair(testCfg(), fs, fs,
		locatedCase(models.CaseTypeLost, 52.52, 13.405),
		locatedCase(models.CaseTypeFound, 52.53, 13.41))
	far := ScorePair(testCfg(), fs, fs,
		locatedCase(models.CaseTypeLost, 52.52, 13.405),
		locatedCase(models.CaseTypeFound, 48.85, 2.35))

	require.NotNil(t, near.LocationScore)
	require.NotNil(t, far.LocationScore)
	assert.Greater(t, *near.LocationScore, *far.LocationScore)
	// Same features, different distances: the overall score never moves.
	assert.Equal(t, near.Overall, far.Overall)

	require.NotNil(t, near.DistanceKM)
	assert.Less(t, *near.DistanceKM, 2.0)
}

func TestLocationScoreAbsentWithoutBothLocations(t *testing.T) {
	fs := &models.FeatureSet{PHash: "00ff00ff00ff00ff"}
	ps := ScorePair(testCfg(), fs, fs,
		locatedCase(models.CaseTypeLost, 52.52, 13.405),
		openCase(models.CaseTypeFound, ""))

	assert.Nil(t, ps.LocationScore)
	assert.Nil(t, ps.DistanceKM)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Berlin to Paris is roughly 878 km.
	km := haversineKM(52.52, 13.405, 48.8566, 2.3522)
	assert.InDelta(t, 878, km, 10)
}

func TestLinearScore(t *testing.T) {
	assert.Equal(t, 100, linearScore(0, 24))
	assert.Equal(t, 50, linearScore(12, 24))
	assert.Equal(t, 0, linearScore(24, 24))
	assert.Equal(t, 0, linearScore(30, 24))
	assert.Equal(t, 0, linearScore(5, 0))
}
