package enhance

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"
)

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gray(v uint8) color.NRGBA { return color.NRGBA{R: v, G: v, B: v, A: 255} }

func rect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// checkerboard is a sharp, high-contrast, mid-brightness image.
func checkerboard(w, h, cell int) *image.NRGBA {
	img := fill(w, h, gray(0))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetNRGBA(x, y, gray(255))
			}
		}
	}
	return img
}

// horizontalBars draws dark bars on white, away from the borders.
func horizontalBars(w, h int) *image.NRGBA {
	img := fill(w, h, gray(255))
	for y := 50; y+8 < h-40; y += 60 {
		rect(img, image.Rect(40, y, w-40, y+8), gray(0))
	}
	return img
}

// textOnGray is a mid-gray page with a white block of black lettering.
func textOnGray(w, h int) *image.NRGBA {
	img := fill(w, h, gray(128))
	block := image.Rect(w/10, h/6, w-w/10, h-h/6)
	rect(img, block, gray(255))
	for y := block.Min.Y + 10; y+12 < block.Max.Y; y += 24 {
		for x := block.Min.X + 10; x+10 < block.Max.X; x += 9 {
			rect(img, image.Rect(x, y, x+4, y+12), gray(0))
		}
	}
	return img
}

// verticalStripes has strong edges but none near horizontal.
func verticalStripes(w, h int) *image.NRGBA {
	img := fill(w, h, gray(230))
	for x := 20; x+6 < w; x += 30 {
		rect(img, image.Rect(x, 0, x+6, h), gray(20))
	}
	return img
}

// darkText is dim, low-contrast lettering on a dark background.
func darkText(w, h int) *image.NRGBA {
	img := fill(w, h, gray(35))
	for y := 20; y+12 < h; y += 24 {
		for x := 15; x+4 < w; x += 9 {
			rect(img, image.Rect(x, y, x+4, y+12), gray(60))
		}
	}
	return img
}

func snapshot(img *image.NRGBA) []byte {
	return append([]byte(nil), img.Pix...)
}

func assertUnchanged(t *testing.T, img *image.NRGBA, before []byte) {
	t.Helper()
	if !bytes.Equal(img.Pix, before) {
		t.Fatalf("input image was modified")
	}
}

func meanLuma(img image.Image) float64 {
	m, _ := meanStd(luma(asNRGBA(img)))
	return m
}

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
