package features

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLumaHistogramNormalized(t *testing.T) {
	hist := LumaHistogram(gradientImage(100, 100))
	require.Len(t, hist, 32)

	var sum float32
	for _, v := range hist {
		assert.GreaterOrEqual(t, v, float32(0))
		sum += v
	}
	assert.InDelta(t, 1.0, float64(sum), 1e-4)
}

func TestLumaHistogramSolidImageSingleBin(t *testing.T) {
	hist := LumaHistogram(solidImage(64, 64, color.RGBA{200, 200, 200, 255}))

	var nonzero int
	for _, v := range hist {
		if v > 0 {
			nonzero++
		}
	}
	assert.Equal(t, 1, nonzero)
}

func TestLumaHistogramSeparatesDarkAndBright(t *testing.T) {
	dark := LumaHistogram(solidImage(64, 64, color.RGBA{10, 10, 10, 255}))
	bright := LumaHistogram(solidImage(64, 64, color.RGBA{245, 245, 245, 255}))

	var overlap float64
	for i := range dark {
		if float64(dark[i]) < float64(bright[i]) {
			overlap += float64(dark[i])
		} else {
			overlap += float64(bright[i])
		}
	}
	assert.Equal(t, 0.0, overlap)
}

// twoTone draws a black square on a white background, giving strong
// vertical and horizontal edges.
func twoTone(size int) *image.RGBA {
	img := solidImage(size, size, color.RGBA{255, 255, 255, 255})
	for y := size / 4; y < 3*size/4; y++ {
		for x := size / 4; x < 3*size/4; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return img
}

func TestShapeDescriptorNormalized(t *testing.T) {
	hist := ShapeDescriptor(twoTone(100))
	require.NotNil(t, hist)
	require.Len(t, hist, 16)

	var sum float32
	for _, v := range hist {
		assert.GreaterOrEqual(t, v, float32(0))
		sum += v
	}
	assert.InDelta(t, 1.0, float64(sum), 1e-4)
}

func TestShapeDescriptorFeaturelessImage(t *testing.T) {
	// A uniform image has no edges at all: the signal is absent, not a
	// zero histogram.
	assert.Nil(t, ShapeDescriptor(solidImage(64, 64, color.RGBA{128, 128, 128, 255})))
}

func TestShapeDescriptorScaleStable(t *testing.T) {
	a := ShapeDescriptor(twoTone(100))
	require.NotNil(t, a)
	b := ShapeDescriptor(twoTone(400))
	require.NotNil(t, b)

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	assert.Greater(t, cos, 0.9, "same silhouette at different scales")
}
