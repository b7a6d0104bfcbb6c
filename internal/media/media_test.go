package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solidPNG(t *testing.T, c color.RGBA, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeReturnsDimensionsAndColor(t *testing.T) {
	data := solidPNG(t, color.RGBA{R: 200, G: 20, B: 20, A: 255}, 16)
	a, err := Analyze(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Width != 16 || a.Height != 16 {
		t.Fatalf("expected 16x16, got %dx%d", a.Width, a.Height)
	}
	if a.DominantRGB[0] < 150 {
		t.Fatalf("expected red-dominant color, got %+v", a.DominantRGB)
	}
}

func TestAnalyzeInvalidDataErrors(t *testing.T) {
	if _, err := Analyze(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatalf("expected decode error for invalid data")
	}
}

func TestHammingDistanceOfIdenticalHashIsZero(t *testing.T) {
	data := solidPNG(t, color.RGBA{R: 10, G: 10, B: 10, A: 255}, 16)
	a, _ := Analyze(bytes.NewReader(data))
	b, _ := Analyze(bytes.NewReader(data))
	if d := HammingDistance(a.PerceptualHash, b.PerceptualHash); d != 0 {
		t.Fatalf("expected identical hashes, distance=%d", d)
	}
}

func TestHammingDistanceOfSolidColorsIsZero(t *testing.T) {
	red := solidPNG(t, color.RGBA{R: 255, G: 0, B: 0, A: 255}, 16)
	blue := solidPNG(t, color.RGBA{R: 0, G: 0, B: 255, A: 255}, 16)
	a, _ := Analyze(bytes.NewReader(red))
	b, _ := Analyze(bytes.NewReader(blue))
	if d := HammingDistance(a.PerceptualHash, b.PerceptualHash); d != 0 {
		t.Fatalf("expected solid images of any color to share a dHash, distance=%d", d)
	}
}
