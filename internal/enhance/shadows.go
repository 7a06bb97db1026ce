package enhance

import "image"

// BalanceShadowsHighlights lifts dark regions and tames bright ones through
// soft masks, then shifts luminance according to where its histogram peaks.
func BalanceShadowsHighlights(src *image.NRGBA, p ShadowParams) (*image.NRGBA, map[string]any) {
	y := luma(src)
	w, h := y.w, y.h

	shadow, highlight := newMask(w, h), newMask(w, h)
	for i, v := range y.pix {
		shadow.on[i] = float64(v) < p.ShadowThreshold*255
		highlight.on[i] = float64(v) > p.HighlightThreshold*255
	}
	shadowW := blurWeights(shadow.weights(), kernelSigma(p.ShadowBlurKernel))
	highlightW := blurWeights(highlight.weights(), kernelSigma(p.HighlightBlurKernel))

	factor := newPlane(w, h)
	for i := range factor.pix {
		f := 1 + float64(shadowW.pix[i])*(p.ShadowLift-1)
		f *= 1 - float64(highlightW.pix[i])*(1-p.HighlightFactor)
		factor.pix[i] = float32(f)
	}
	cur := scaleChannels(src, factor)

	ly, cb, cr := splitYCbCr(cur)
	peak := histogramPeak(ly)
	offset, gain := 10.0, 1.1
	switch {
	case peak < 50:
		offset, gain = 30, 1.3
	case peak < 100:
		offset, gain = 20, 1.2
	}
	for i, v := range ly.pix {
		ly.pix[i] = float32(clamp255((float64(v) + offset) * gain))
	}
	out := mergeYCbCr(ly, cb, cr)

	return out, map[string]any{
		"shadow_pixels":    shadow.count(),
		"highlight_pixels": highlight.count(),
		"histogram_peak":   peak,
		"peak_offset":      offset,
		"peak_gain":        gain,
	}
}

func histogramPeak(p *plane) int {
	var hist [256]int
	for _, v := range p.pix {
		hist[clamp255(float64(v))]++
	}
	peak := 0
	for i, c := range hist {
		if c > hist[peak] {
			peak = i
		}
	}
	return peak
}
