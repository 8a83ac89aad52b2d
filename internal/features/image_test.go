package features

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradientImage(40, 40), nil))

	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestDecodeImagePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(32, 24, color.RGBA{10, 20, 30, 255})))

	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestDecodeImageGarbage(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestResizeImage(t *testing.T) {
	resized := resizeImage(gradientImage(128, 64), 32, 32)
	assert.Equal(t, 32, resized.Bounds().Dx())
	assert.Equal(t, 32, resized.Bounds().Dy())
}

func TestImageToFloat32CHW(t *testing.T) {
	data := imageToFloat32CHW(solidImage(8, 8, color.RGBA{128, 128, 128, 255}),
		4, 4, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

	require.Len(t, data, 3*4*4)
	for i, v := range data {
		assert.InDelta(t, 0, float64(v), 0.01, "index %d", i)
	}
}
