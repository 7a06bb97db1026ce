package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// SharpenText applies an unsharp mask, then sharpens edges strongly and
// flat areas mildly, and finally mixes a kernel-sharpened luminance into
// the result.
func SharpenText(src *image.NRGBA, p SharpenParams) (*image.NRGBA, map[string]any) {
	cur := unsharp(src, p.Amount, p.Sigma)

	edges := canny(luma(cur), p.EdgeLow, p.EdgeHigh)
	edgeMask := dilate(dilate(edges, structuring(3, false)), structuring(3, false))
	weights := blurWeights(edgeMask.weights(), kernelSigma(p.MaskBlurKernel))
	strong := unsharp(cur, p.StrongAmount, p.StrongSigma)
	mild := unsharp(cur, p.MildAmount, p.MildSigma)
	cur = blend(strong, mild, weights)

	y, cb, cr := splitYCbCr(cur)
	sharp := redPlane(imaging.Convolve3x3(planeToGray(y), sharpenKernel, nil))
	for i, v := range y.pix {
		y.pix[i] = float32(clamp255(float64(v)*(1-p.KernelWeight) + float64(sharp.pix[i])*p.KernelWeight))
	}
	out := mergeYCbCr(y, cb, cr)

	return out, map[string]any{
		"amount":       p.Amount,
		"edge_pixels":  edges.count(),
		"kernel_blend": p.KernelWeight,
	}
}

// unsharp returns src + amount·(src − blur(src)), clamped.
func unsharp(src *image.NRGBA, amount, sigma float64) *image.NRGBA {
	blurred := imaging.Blur(src, sigma)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := newOpaque(w, h)
	for y := 0; y < h; y++ {
		rs, rb, ro := src.Pix[y*src.Stride:], blurred.Pix[y*blurred.Stride:], out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			for c := 0; c < 3; c++ {
				s := float64(rs[i+c])
				ro[i+c] = clamp255(s + amount*(s-float64(rb[i+c])))
			}
		}
	}
	return out
}
