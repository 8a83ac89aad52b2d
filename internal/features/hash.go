package features

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"
)

// PerceptualHash computes a 64-bit difference hash: the image is reduced
// to a 9x8 luminance grid and each bit records whether a pixel is
// brighter than its right neighbour. Robust to scaling, compression and
// small colour shifts.
func PerceptualHash(img image.Image) string {
	gray := toGray(img, 9, 8)

	var h uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[y][x] > gray[y][x+1] {
				h |= 1 << uint(63-bit)
			}
			bit++
		}
	}
	return fmt.Sprintf("%016x", h)
}

// HammingDistance returns the number of differing bits between two hex
// hashes, or -1 when either hash is malformed.
func HammingDistance(a, b string) int {
	ha, errA := strconv.ParseUint(a, 16, 64)
	hb, errB := strconv.ParseUint(b, 16, 64)
	if errA != nil || errB != nil {
		return -1
	}
	return bits.OnesCount64(ha ^ hb)
}
