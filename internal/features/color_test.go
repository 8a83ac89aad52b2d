package features

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageColorSolid(t *testing.T) {
	avg := AverageColor(solidImage(50, 50, color.RGBA{200, 100, 50, 255}))

	assert.InDelta(t, 200, int(avg[0]), 2)
	assert.InDelta(t, 100, int(avg[1]), 2)
	assert.InDelta(t, 50, int(avg[2]), 2)
}

func TestAverageColorMixed(t *testing.T) {
	// Left half black, right half white: the mean lands mid-gray.
	img := solidImage(64, 64, color.RGBA{0, 0, 0, 255})
	for y := 0; y < 64; y++ {
		for x := 32; x < 64; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	avg := AverageColor(img)
	assert.InDelta(t, 127, int(avg[0]), 10)
}

func TestColorBucketCorners(t *testing.T) {
	assert.Equal(t, int16(0), ColorBucket([3]uint8{0, 0, 0}))
	assert.Equal(t, int16(26), ColorBucket([3]uint8{255, 255, 255}))
	assert.Equal(t, int16(13), ColorBucket([3]uint8{100, 100, 100}))
}

func TestColorBucketStableWithinLevel(t *testing.T) {
	// Small shifts inside one quantization level never change the bucket.
	assert.Equal(t, ColorBucket([3]uint8{10, 10, 10}), ColorBucket([3]uint8{12, 11, 9}))
	assert.Equal(t, ColorBucket([3]uint8{200, 90, 30}), ColorBucket([3]uint8{210, 100, 40}))
}

func TestColorBucketRange(t *testing.T) {
	for _, c := range [][3]uint8{
		{0, 0, 0}, {84, 84, 84}, {85, 85, 85}, {169, 170, 169}, {255, 0, 128},
	} {
		b := ColorBucket(c)
		assert.GreaterOrEqual(t, b, int16(0))
		assert.LessOrEqual(t, b, int16(26))
	}
}
