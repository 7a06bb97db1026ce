package enhance

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ReduceGlare runs four passes, each on the previous output: saturated
// glare blobs are replaced by a local median, specular highlights are
// inpainted from their surroundings, flat bright areas are smoothed, and
// bright edge-free reflections are blended toward an edge-preserving
// filter.
func ReduceGlare(src *image.NRGBA, p GlareParams) (*image.NRGBA, map[string]any) {
	cur := src
	passes := []string{}
	details := map[string]any{}

	if out, n := glareMedianPass(cur, p); n > 0 {
		cur = out
		passes = append(passes, "glare_median")
		details["glare_pixels"] = n
	}
	if out, n := specularPass(cur, p); n > 0 {
		cur = out
		passes = append(passes, "specular_inpaint")
		details["specular_pixels"] = n
	}
	if out, n := adaptivePass(cur, p); n > 0 {
		cur = out
		passes = append(passes, "adaptive")
		details["adaptive_pixels"] = n
	}
	if out, n := reflectionPass(cur, p); n > 0 {
		cur = out
		passes = append(passes, "reflection")
		details["reflection_pixels"] = n
	}
	details["passes"] = passes

	if cur == src {
		cur = imaging.Clone(src)
	}
	return cur, details
}

func glareMedianPass(src *image.NRGBA, p GlareParams) (*image.NRGBA, int) {
	y, cb, cr := splitYCbCr(src)
	m := newMask(y.w, y.h)
	for i, v := range y.pix {
		m.on[i] = float64(v) > p.Threshold
	}
	k := structuring(p.MorphKernel, true)
	m = dilate(morphOpen(morphClose(m, k), k), k)
	n := m.count()
	if n == 0 {
		return src, 0
	}
	filtered := y.clone()
	for yy := 0; yy < y.h; yy++ {
		for x := 0; x < y.w; x++ {
			if m.on[yy*y.w+x] {
				filtered.pix[yy*y.w+x] = medianAt(y, x, yy, p.MedianKernel)
			}
		}
	}
	return mergeYCbCr(filtered, cb, cr), n
}

func specularPass(src *image.NRGBA, p GlareParams) (*image.NRGBA, int) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	m := newMask(w, h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			r, g, b := row[i], row[i+1], row[i+2]
			v := max(r, g, b)
			lo := min(r, g, b)
			s := 0.0
			if v > 0 {
				s = float64(v-lo) * 255 / float64(v)
			}
			m.on[y*w+x] = float64(v) > p.SpecularValue && s < p.SpecularSaturation
		}
	}
	n := m.count()
	if n == 0 {
		return src, 0
	}
	return inpaint(src, m, p.InpaintRadius), n
}

func adaptivePass(src *image.NRGBA, p GlareParams) (*image.NRGBA, int) {
	gray := luma(src)
	mean := boxMean(gray, p.AdaptiveWindow)
	sq := newPlane(gray.w, gray.h)
	for i, v := range gray.pix {
		sq.pix[i] = v * v
	}
	sqMean := boxMean(sq, p.AdaptiveWindow)

	m := newMask(gray.w, gray.h)
	for i, v := range gray.pix {
		variance := float64(sqMean.pix[i]) - float64(mean.pix[i])*float64(mean.pix[i])
		std := math.Sqrt(math.Max(variance, 0))
		m.on[i] = float64(v) > p.AdaptiveBrightness && std < p.AdaptiveMaxStd
	}
	n := m.count()
	if n == 0 {
		return src, 0
	}
	weights := blurWeights(m.weights(), kernelSigma(p.AdaptiveBlurKernel))
	filtered := filterWhere(src, weights, newBilateral(9, 75, 75, 3))
	return blend(filtered, src, weights), n
}

func reflectionPass(src *image.NRGBA, p GlareParams) (*image.NRGBA, int) {
	gray := luma(src)
	edges := canny(gray, p.EdgeLow, p.EdgeHigh)
	m := newMask(gray.w, gray.h)
	for i, v := range gray.pix {
		m.on[i] = float64(v) > p.ReflectionBrightness && !edges.on[i]
	}
	n := m.count()
	if n == 0 {
		return src, 0
	}
	weights := blurWeights(m.weights(), kernelSigma(p.ReflectionBlurKernel))
	filtered := filterWhere(src, weights, newBilateral(p.ReflectionDiameter, p.ReflectionSigmaColor, p.ReflectionSigmaSpace, 3))
	return blend(filtered, src, weights), n
}

// filterWhere runs the colour bilateral filter only where the blend weight
// is non-negligible; elsewhere src is copied.
func filterWhere(src *image.NRGBA, weights *plane, f *bilateral) *image.NRGBA {
	out := imaging.Clone(src)
	for y := 0; y < weights.h; y++ {
		for x := 0; x < weights.w; x++ {
			if weights.pix[y*weights.w+x] < 1e-3 {
				continue
			}
			r, g, b := f.colorAt(src, x, y)
			i := y*out.Stride + x*4
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = clamp255(r), clamp255(g), clamp255(b)
		}
	}
	return out
}

// inpaint fills masked pixels from the outside in. Each pixel takes a
// weighted mean of already known pixels within radius; closer pixels and
// pixels on a nearby fill front weigh more.
func inpaint(src *image.NRGBA, m *mask, radius int) *image.NRGBA {
	out := imaging.Clone(src)
	w, h := m.w, m.h
	level := make([]int32, w*h)
	known := make([]bool, w*h)
	for i, on := range m.on {
		known[i] = !on
		if on {
			level[i] = -1
		}
	}

	var queue []int
	for i, on := range m.on {
		if !on {
			continue
		}
		x, y := i%w, i/w
		if hasKnownNeighbour(known, w, h, x, y) {
			level[i] = 1
			queue = append(queue, i)
		}
	}
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if xx < 0 || yy < 0 || xx >= w || yy >= h {
					continue
				}
				j := yy*w + xx
				if level[j] == -1 {
					level[j] = level[i] + 1
					queue = append(queue, j)
				}
			}
		}
	}

	r2 := radius * radius
	for _, i := range queue {
		x, y := i%w, i/w
		var sr, sg, sb, norm float64
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				d2 := dx*dx + dy*dy
				if d2 == 0 || d2 > r2 {
					continue
				}
				xx, yy := x+dx, y+dy
				if xx < 0 || yy < 0 || xx >= w || yy >= h {
					continue
				}
				j := yy*w + xx
				if !known[j] {
					continue
				}
				wgt := 1 / float64(d2) / (1 + math.Abs(float64(level[i]-level[j])))
				k := yy*out.Stride + xx*4
				sr += wgt * float64(out.Pix[k])
				sg += wgt * float64(out.Pix[k+1])
				sb += wgt * float64(out.Pix[k+2])
				norm += wgt
			}
		}
		if norm > 0 {
			k := y*out.Stride + x*4
			out.Pix[k], out.Pix[k+1], out.Pix[k+2] = clamp255(sr/norm), clamp255(sg/norm), clamp255(sb/norm)
		}
		known[i] = true
	}
	return out
}

func hasKnownNeighbour(known []bool, w, h, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			xx, yy := x+dx, y+dy
			if (dx == 0 && dy == 0) || xx < 0 || yy < 0 || xx >= w || yy >= h {
				continue
			}
			if known[yy*w+xx] {
				return true
			}
		}
	}
	return false
}
