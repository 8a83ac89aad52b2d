package features

import "image"

// AverageColor returns the mean RGB triple over a downsampled image.
func AverageColor(img image.Image) [3]uint8 {
	resized := resizeImage(img, 32, 32)
	bounds := resized.Bounds()

	var rSum, gSum, bSum uint64
	var n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return [3]uint8{}
	}
	return [3]uint8{uint8(rSum / n), uint8(gSum / n), uint8(bSum / n)}
}

// ColorBucket maps an RGB triple onto one of 27 coarse buckets (three
// levels per channel). Used only as a cheap candidate pre-rank proxy.
func ColorBucket(c [3]uint8) int16 {
	level := func(v uint8) int16 {
		switch {
		case v < 85:
			return 0
		case v < 170:
			return 1
		default:
			return 2
		}
	}
	return level(c[0])*9 + level(c[1])*3 + level(c[2])
}
