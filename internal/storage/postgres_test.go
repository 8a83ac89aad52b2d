package storage

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/reclaim/internal/models"
)

func TestFeatureRowApplyAllNull(t *testing.T) {
	// A freshly created photo has every descriptor column at NULL until
	// the worker persists its FeatureSet. The scan must still succeed
	// and yield an empty set.
	var fr featureRow
	var fs models.FeatureSet
	fr.apply(&fs)

	assert.Empty(t, fs.PHash)
	assert.Nil(t, fs.AvgColor)
	assert.Equal(t, int16(-1), fs.ColorBucket)
	assert.Nil(t, fs.Embedding)
	assert.False(t, fs.HasAny())
}

func TestFeatureRowApplyPopulated(t *testing.T) {
	phash := "00ff00ff00ff00ff"
	bucket := int16(13)
	emb := pgvector.NewVector([]float32{0.1, 0.2, 0.3})

	fr := featureRow{
		phash:    &phash,
		avgColor: []int16{120, 80, 40},
		bucket:   &bucket,
		emb:      &emb,
	}
	var fs models.FeatureSet
	fr.apply(&fs)

	assert.Equal(t, phash, fs.PHash)
	require.NotNil(t, fs.AvgColor)
	assert.Equal(t, [3]uint8{120, 80, 40}, *fs.AvgColor)
	assert.Equal(t, int16(13), fs.ColorBucket)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, fs.Embedding)
	assert.True(t, fs.HasAny())
}

func TestColorRoundTrip(t *testing.T) {
	c := [3]uint8{10, 200, 255}
	assert.Equal(t, &c, colorFromInts(colorToInts(&c)))
	assert.Nil(t, colorToInts(nil))
	assert.Nil(t, colorFromInts(nil))
	assert.Nil(t, colorFromInts([]int16{1, 2}))
}
