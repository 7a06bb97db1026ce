package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

// EnhanceBrightness equalises local contrast on luminance, lifts dark
// images with a gamma curve, smooths noise while keeping edges and
// stretches luminance to the full range.
func EnhanceBrightness(src *image.NRGBA, p BrightnessParams) (*image.NRGBA, map[string]any) {
	y, cb, cr := splitYCbCr(src)
	meanBefore, _ := meanStd(y)

	y = clahe(y, p.ClipLimit, p.TileGrid)
	cur := mergeYCbCr(y, cb, cr)

	dark := darkFraction(luma(cur), p.DarkLevel)
	gamma := 1.0
	switch {
	case dark > p.StrongDarkFraction:
		gamma = p.StrongGamma
	case dark > p.ModerateDarkFraction:
		gamma = p.ModerateGamma
	}
	if gamma != 1 {
		cur = imaging.AdjustGamma(cur, gamma)
	}

	y, cb, cr = splitYCbCr(cur)
	y = newBilateral(p.BilateralDiameter, p.BilateralSigmaColor, p.BilateralSigmaSpace, 1).filterPlane(y)
	normalized := normalizeRange(y)
	out := mergeYCbCr(y, cb, cr)

	meanAfter, _ := meanStd(luma(out))
	return out, map[string]any{
		"clip_limit":    p.ClipLimit,
		"tile_grid":     p.TileGrid,
		"dark_fraction": dark,
		"gamma":         gamma,
		"normalized":    normalized,
		"mean_before":   meanBefore,
		"mean_after":    meanAfter,
	}
}

func darkFraction(y *plane, level float64) float64 {
	if len(y.pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range y.pix {
		if float64(v) < level {
			n++
		}
	}
	return float64(n) / float64(len(y.pix))
}

// normalizeRange stretches p in place to 0..255. A flat plane is left
// untouched.
func normalizeRange(p *plane) bool {
	if len(p.pix) == 0 {
		return false
	}
	lo, hi := p.pix[0], p.pix[0]
	for _, v := range p.pix {
		lo, hi = min(lo, v), max(hi, v)
	}
	if hi-lo < 1e-3 {
		return false
	}
	scale := 255 / (hi - lo)
	for i, v := range p.pix {
		p.pix[i] = (v - lo) * scale
	}
	return true
}
