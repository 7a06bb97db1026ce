package enhance

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// DetectTilt estimates how far the dominant near-horizontal lines deviate
// from horizontal, in degrees, as the rotation that would level them:
// content tilted counter-clockwise gives a negative value. lines is the number of Hough peaks that voted; when it
// is zero the deviation is meaningless and reported as 0.
func DetectTilt(img image.Image, p RotationParams) (deviation float64, lines int) {
	src := asNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w < 3 || h < 3 {
		return 0, 0
	}
	threshold := p.HoughThreshold
	if p.DetectMaxSide > 0 && max(w, h) > p.DetectMaxSide {
		scale := float64(p.DetectMaxSide) / float64(max(w, h))
		src = imaging.Fit(src, p.DetectMaxSide, p.DetectMaxSide, imaging.Box)
		w, h = src.Rect.Dx(), src.Rect.Dy()
		threshold = max(1, int(math.Round(float64(threshold)*scale)))
	}

	edges := canny(blurPlane(luma(src), kernelSigma(5)), p.CannyLow, p.CannyHigh)

	nTheta := int(math.Round(2*p.MaxAngle/p.AngleStep)) + 1
	thetas := make([]float64, nTheta)
	cosT := make([]float64, nTheta)
	sinT := make([]float64, nTheta)
	for i := range thetas {
		thetas[i] = 90 - p.MaxAngle + float64(i)*p.AngleStep
		rad := thetas[i] * math.Pi / 180
		cosT[i], sinT[i] = math.Cos(rad), math.Sin(rad)
	}
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	nRho := 2*diag + 1

	acc := make([]int32, nTheta*nRho)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !edges.on[y*w+x] {
				continue
			}
			fx, fy := float64(x), float64(y)
			for t := 0; t < nTheta; t++ {
				r := int(math.Round(fx*cosT[t]+fy*sinT[t])) + diag
				acc[t*nRho+r]++
			}
		}
	}

	vote := func(t, r int) int32 {
		if t < 0 || r < 0 || t >= nTheta || r >= nRho {
			return 0
		}
		return acc[t*nRho+r]
	}
	var deviations []float64
	for t := 0; t < nTheta; t++ {
		for r := 0; r < nRho; r++ {
			v := acc[t*nRho+r]
			if int(v) < threshold {
				continue
			}
			if v > vote(t-1, r) && v >= vote(t+1, r) && v > vote(t, r-1) && v >= vote(t, r+1) {
				deviations = append(deviations, thetas[t]-90)
			}
		}
	}
	if len(deviations) == 0 {
		return 0, 0
	}
	return median(deviations), len(deviations)
}

// CorrectRotation levels the image when its near-horizontal lines are
// tilted by more than MinAngle. The correction is clipped to ±MaxAngle and
// the result is cropped to the largest rectangle covered by rotated
// content. It returns the counter-clockwise rotation it applied, or 0 with
// src itself when nothing was done.
func CorrectRotation(src *image.NRGBA, p RotationParams) (*image.NRGBA, float64) {
	dev, lines := DetectTilt(src, p)
	if lines == 0 {
		return src, 0
	}
	angle := math.Max(-p.MaxAngle, math.Min(p.MaxAngle, dev))
	if math.Abs(angle) <= p.MinAngle {
		return src, 0
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	rotated := imaging.Rotate(src, angle, color.Transparent)
	out := imaging.Crop(rotated, inscribedRect(w, h, angle, rotated.Rect))
	out = trimTransparent(out)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out, angle
}

// edgeMargin keeps the crop clear of interpolated border pixels.
const edgeMargin = 2

// inscribedRect returns the largest axis-aligned rectangle inside a w×h
// rectangle rotated by angle degrees, centred in bounds.
func inscribedRect(w, h int, angle float64, bounds image.Rectangle) image.Rectangle {
	fw, fh := float64(w), float64(h)
	rad := math.Abs(angle) * math.Pi / 180
	sinA, cosA := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))

	long, short := fw, fh
	widthLonger := fw >= fh
	if !widthLonger {
		long, short = fh, fw
	}
	var wr, hr float64
	if short <= 2*sinA*cosA*long || math.Abs(sinA-cosA) < 1e-10 {
		x := 0.5 * short
		if widthLonger {
			wr, hr = x/sinA, x/cosA
		} else {
			wr, hr = x/cosA, x/sinA
		}
	} else {
		cos2 := cosA*cosA - sinA*sinA
		wr = (fw*cosA - fh*sinA) / cos2
		hr = (fh*cosA - fw*sinA) / cos2
	}

	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2
	r := image.Rect(
		int(math.Ceil(cx-wr/2))+edgeMargin, int(math.Ceil(cy-hr/2))+edgeMargin,
		int(math.Floor(cx+wr/2))-edgeMargin, int(math.Floor(cy+hr/2))-edgeMargin,
	)
	r = r.Intersect(bounds)
	if r.Empty() {
		c := image.Pt(int(cx), int(cy))
		return image.Rectangle{Min: c, Max: c.Add(image.Pt(1, 1))}.Intersect(bounds)
	}
	return r
}

// trimTransparent drops border rows and columns that still contain
// partially transparent pixels.
func trimTransparent(img *image.NRGBA) *image.NRGBA {
	b := img.Rect
	alphaRow := func(y, x0, x1 int) bool {
		for x := x0; x < x1; x++ {
			if img.Pix[(y-img.Rect.Min.Y)*img.Stride+(x-img.Rect.Min.X)*4+3] != 255 {
				return true
			}
		}
		return false
	}
	alphaCol := func(x, y0, y1 int) bool {
		for y := y0; y < y1; y++ {
			if img.Pix[(y-img.Rect.Min.Y)*img.Stride+(x-img.Rect.Min.X)*4+3] != 255 {
				return true
			}
		}
		return false
	}
	for changed := true; changed && b.Dx() > 1 && b.Dy() > 1; {
		changed = false
		if alphaRow(b.Min.Y, b.Min.X, b.Max.X) {
			b.Min.Y++
			changed = true
		}
		if b.Dy() > 1 && alphaRow(b.Max.Y-1, b.Min.X, b.Max.X) {
			b.Max.Y--
			changed = true
		}
		if alphaCol(b.Min.X, b.Min.Y, b.Max.Y) {
			b.Min.X++
			changed = true
		}
		if b.Dx() > 1 && alphaCol(b.Max.X-1, b.Min.Y, b.Max.Y) {
			b.Max.X--
			changed = true
		}
	}
	if b == img.Rect {
		return img
	}
	return imaging.Crop(img, b)
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
