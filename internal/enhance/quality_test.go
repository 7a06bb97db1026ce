package enhance

import "testing"

func TestAssessAcceptsSharpContrastyImage(t *testing.T) {
	m := Assess(checkerboard(120, 80, 8), DefaultConfig().Thresholds)

	if m.NeedsEnhancement {
		t.Fatalf("NeedsEnhancement = true for %+v", m)
	}
	if !almostEqual(m.Brightness, 127.5, 1) {
		t.Fatalf("Brightness = %.2f, want ~127.5", m.Brightness)
	}
	if m.Contrast < 120 {
		t.Fatalf("Contrast = %.2f, want > 120", m.Contrast)
	}
}

func TestAssessFlagsFlatImage(t *testing.T) {
	m := Assess(fill(64, 64, gray(128)), DefaultConfig().Thresholds)

	if !m.NeedsEnhancement {
		t.Fatalf("flat image should need enhancement")
	}
	if m.Contrast != 0 || m.Sharpness != 0 {
		t.Fatalf("flat image metrics = %+v", m)
	}
}

func TestAssessBrightnessBounds(t *testing.T) {
	th := DefaultConfig().Thresholds
	img := checkerboard(64, 64, 4)

	// Same sharpness and contrast; only the brightness window changes.
	th.MaxBrightness = 100
	if m := Assess(img, th); !m.NeedsEnhancement {
		t.Fatalf("brightness %.1f above max should need enhancement", m.Brightness)
	}
	th.MaxBrightness = 235
	th.MinBrightness = 200
	if m := Assess(img, th); !m.NeedsEnhancement {
		t.Fatalf("brightness %.1f below min should need enhancement", m.Brightness)
	}
}

func TestLaplacianVarianceIgnoresFlatBorders(t *testing.T) {
	p := newPlane(5, 5)
	for i := range p.pix {
		p.pix[i] = 77
	}
	if v := laplacianVariance(p); v != 0 {
		t.Fatalf("laplacianVariance(flat) = %v, want 0", v)
	}
}
