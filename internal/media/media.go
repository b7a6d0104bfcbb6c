// Package media decodes images discovered on an Expression and
// extracts dimensions, dominant color, and a perceptual hash for
// near-duplicate detection. No library in the example corpus does
// image decoding or perceptual hashing, so this package is a
// documented standard-library exception (see DESIGN.md).
package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// Analysis is the extracted signal for one image.
type Analysis struct {
	Width          int
	Height         int
	DominantRGB    [3]uint8
	PerceptualHash uint64
}

// Analyze decodes r and computes dimensions, an average dominant
// color, and an 8x8 difference hash (dHash).
func Analyze(r io.Reader) (Analysis, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Analysis{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	return Analysis{
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		DominantRGB:    dominantColor(img),
		PerceptualHash: dHash(img),
	}, nil
}

// dominantColor averages every pixel's RGB value. A true k-means
// clustering is unnecessary for this use case (near-duplicate
// detection downstream cares about a rough color fingerprint, not an
// exact palette), so a single-pass average serves as the simplest
// correct "dominant color" estimate.
func dominantColor(img image.Image) [3]uint8 {
	bounds := img.Bounds()
	var rSum, gSum, bSum, count uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			count++
		}
	}
	if count == 0 {
		return [3]uint8{}
	}
	return [3]uint8{uint8(rSum / count), uint8(gSum / count), uint8(bSum / count)}
}

// dHash computes a 64-bit difference hash: downscale to 9x8
// grayscale, compare each pixel to its right neighbor, and pack the
// 64 comparison bits into a uint64. Images with similar structure
// produce hashes with a small Hamming distance.
func dHash(img image.Image) uint64 {
	const w, h = 9, 8
	gray := downscaleGray(img, w, h)

	var hash uint64
	bit := uint(0)
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			if gray[y][x] > gray[y][x+1] {
				hash |= 1 << bit
			}
			bit++
		}
	}
	return hash
}

func downscaleGray(img image.Image, w, h int) [][]uint8 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	out := make([][]uint8, h)
	for y := 0; y < h; y++ {
		out[y] = make([]uint8, w)
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*srcW/w
			sy := bounds.Min.Y + y*srcH/h
			r, g, b, _ := img.At(sx, sy).RGBA()
			lum := (uint32(r>>8)*299 + uint32(g>>8)*587 + uint32(b>>8)*114) / 1000
			out[y][x] = uint8(lum)
		}
	}
	return out
}

// HammingDistance reports how many bits differ between two
// perceptual hashes, used to flag near-duplicate images.
func HammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}
