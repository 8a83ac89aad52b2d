package features

import (
	"image"
	"math"
)

const shapeBins = 16

// ShapeDescriptor computes a 16-bin edge-orientation histogram from
// Sobel gradients over a 64x64 luminance downsample, L1-normalized.
// It captures the silhouette of the pictured object independently of
// colour and overall brightness.
func ShapeDescriptor(img image.Image) []float32 {
	const size = 64
	gray := toGray(img, size, size)

	hist := make([]float32, shapeBins)
	var total float32

	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			gx := -gray[y-1][x-1] - 2*gray[y][x-1] - gray[y+1][x-1] +
				gray[y-1][x+1] + 2*gray[y][x+1] + gray[y+1][x+1]
			gy := -gray[y-1][x-1] - 2*gray[y-1][x] - gray[y-1][x+1] +
				gray[y+1][x-1] + 2*gray[y+1][x] + gray[y+1][x+1]

			mag := math.Hypot(gx, gy)
			if mag < 32 { // ignore weak edges
				continue
			}

			angle := math.Atan2(gy, gx) + math.Pi // [0, 2π)
			bin := int(angle / (2 * math.Pi) * shapeBins)
			if bin >= shapeBins {
				bin = shapeBins - 1
			}
			hist[bin] += float32(mag)
			total += float32(mag)
		}
	}

	if total == 0 {
		return nil // featureless image, signal absent
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}
