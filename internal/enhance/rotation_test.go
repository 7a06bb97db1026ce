package enhance

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
)

func TestCorrectRotationLevelsTiltedLines(t *testing.T) {
	p := DefaultConfig().Rotation
	tilted := imaging.Rotate(horizontalBars(600, 400), 7, color.White)
	before := snapshot(tilted)

	out, angle := CorrectRotation(tilted, p)

	assertUnchanged(t, tilted, before)
	if !almostEqual(angle, -7, 0.5) {
		t.Fatalf("angle = %.2f, want ~-7", angle)
	}
	if out.Rect.Dx() >= tilted.Rect.Dx() || out.Rect.Dy() >= tilted.Rect.Dy() {
		t.Fatalf("output %v not cropped from %v", out.Rect, tilted.Rect)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 255 {
			t.Fatalf("output has transparent pixel at offset %d", i)
		}
	}
	residual, lines := DetectTilt(out, p)
	if lines == 0 {
		t.Fatalf("no lines detected after correction")
	}
	if math.Abs(residual) >= 1 {
		t.Fatalf("residual tilt = %.2f, want < 1", residual)
	}
}

func TestCorrectRotationUndoesClockwiseTilt(t *testing.T) {
	tilted := imaging.Rotate(horizontalBars(600, 400), -5, color.White)

	_, angle := CorrectRotation(tilted, DefaultConfig().Rotation)

	if !almostEqual(angle, 5, 0.5) {
		t.Fatalf("angle = %.2f, want ~5", angle)
	}
}

func TestCorrectRotationIdentityWithoutLines(t *testing.T) {
	img := verticalStripes(300, 200)

	out, angle := CorrectRotation(img, DefaultConfig().Rotation)

	if angle != 0 {
		t.Fatalf("angle = %v, want 0", angle)
	}
	if out != img {
		t.Fatalf("image without horizontal lines should pass through unchanged")
	}
}

func TestCorrectRotationIgnoresSmallTilt(t *testing.T) {
	tilted := imaging.Rotate(horizontalBars(600, 400), 0.2, color.White)

	out, angle := CorrectRotation(tilted, DefaultConfig().Rotation)

	if angle != 0 || out != tilted {
		t.Fatalf("tilt below the minimum should be left alone, got angle %.2f", angle)
	}
}

func TestCorrectRotationIsBounded(t *testing.T) {
	p := DefaultConfig().Rotation
	for _, tilt := range []float64{-9, 4, 9.8, 14} {
		tilted := imaging.Rotate(horizontalBars(500, 360), tilt, color.White)
		_, angle := CorrectRotation(tilted, p)
		if math.Abs(angle) > p.MaxAngle {
			t.Fatalf("tilt %.1f: angle %.2f exceeds %.1f", tilt, angle, p.MaxAngle)
		}
	}
}

func TestInscribedRectFitsRotatedContent(t *testing.T) {
	w, h := 600, 400
	rotated := imaging.Rotate(fill(w, h, gray(10)), -8, color.Transparent)

	r := inscribedRect(w, h, 8, rotated.Rect)

	if r.Empty() || !r.In(rotated.Rect) {
		t.Fatalf("rect %v not inside %v", r, rotated.Rect)
	}
	for _, pt := range []image.Point{r.Min, {r.Max.X - 1, r.Min.Y}, {r.Min.X, r.Max.Y - 1}, r.Max.Sub(image.Pt(1, 1))} {
		if a := rotated.NRGBAAt(pt.X, pt.Y).A; a != 255 {
			t.Fatalf("corner %v has alpha %d", pt, a)
		}
	}
}

func TestMedianEvenAndOdd(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("median odd = %v", got)
	}
	if got := median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("median even = %v", got)
	}
}
