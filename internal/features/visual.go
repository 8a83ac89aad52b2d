package features

import "image"

const lumaBins = 32

// LumaHistogram computes a normalized 32-bin luminance histogram, the
// coarse global-appearance ("visual") signal, independent of the
// embedding model.
func LumaHistogram(img image.Image) []float32 {
	gray := toGray(img, 64, 64)

	hist := make([]float32, lumaBins)
	var total float32
	for y := range gray {
		for x := range gray[y] {
			bin := int(gray[y][x]) * lumaBins / 256
			if bin >= lumaBins {
				bin = lumaBins - 1
			}
			hist[bin]++
			total++
		}
	}
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hist
}
