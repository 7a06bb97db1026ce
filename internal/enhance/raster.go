package enhance

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// plane is a single-channel float32 raster in the 0..255 range.
type plane struct {
	w, h int
	pix  []float32
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float32, w*h)}
}

func (p *plane) clone() *plane {
	out := &plane{w: p.w, h: p.h, pix: make([]float32, len(p.pix))}
	copy(out.pix, p.pix)
	return out
}

// reflect returns p[x,y] with reflect-101 borders.
func (p *plane) reflect(x, y int) float32 {
	return p.pix[reflect101(y, p.h)*p.w+reflect101(x, p.w)]
}

// mask is a binary raster.
type mask struct {
	w, h int
	on   []bool
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, on: make([]bool, w*h)}
}

func (m *mask) count() int {
	n := 0
	for _, v := range m.on {
		if v {
			n++
		}
	}
	return n
}

// weights converts the mask to a 0/1 plane.
func (m *mask) weights() *plane {
	p := newPlane(m.w, m.h)
	for i, v := range m.on {
		if v {
			p.pix[i] = 1
		}
	}
	return p
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// asNRGBA returns img as a zero-origin *image.NRGBA, copying only when the
// layout differs.
func asNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

func newOpaque(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// luma computes 8-bit BT.601 luminance.
func luma(img *image.NRGBA) *plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := newPlane(w, h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			v := 0.299*float64(row[i]) + 0.587*float64(row[i+1]) + 0.114*float64(row[i+2])
			p.pix[y*w+x] = float32(clamp255(v))
		}
	}
	return p
}

// splitYCbCr separates luminance from chrominance.
func splitYCbCr(img *image.NRGBA) (y, cb, cr *plane) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	y, cb, cr = newPlane(w, h), newPlane(w, h), newPlane(w, h)
	for yy := 0; yy < h; yy++ {
		row := img.Pix[yy*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			l, b, r := color.RGBToYCbCr(row[i], row[i+1], row[i+2])
			j := yy*w + x
			y.pix[j], cb.pix[j], cr.pix[j] = float32(l), float32(b), float32(r)
		}
	}
	return y, cb, cr
}

// mergeYCbCr recombines planes into a new opaque image.
func mergeYCbCr(y, cb, cr *plane) *image.NRGBA {
	out := newOpaque(y.w, y.h)
	for yy := 0; yy < y.h; yy++ {
		row := out.Pix[yy*out.Stride:]
		for x := 0; x < y.w; x++ {
			j := yy*y.w + x
			r, g, b := color.YCbCrToRGB(clamp255(float64(y.pix[j])), clamp255(float64(cb.pix[j])), clamp255(float64(cr.pix[j])))
			i := x * 4
			row[i], row[i+1], row[i+2] = r, g, b
		}
	}
	return out
}

// replaceLuma swaps the luminance of img for y, keeping chrominance.
func replaceLuma(img *image.NRGBA, y *plane) *image.NRGBA {
	_, cb, cr := splitYCbCr(img)
	return mergeYCbCr(y, cb, cr)
}

func planeToGray(p *plane) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.w, p.h))
	for i, v := range p.pix {
		g.Pix[i] = clamp255(float64(v))
	}
	return g
}

func redPlane(img *image.NRGBA) *plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := newPlane(w, h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p.pix[y*w+x] = float32(row[x*4])
		}
	}
	return p
}

// kernelSigma is the Gaussian sigma conventionally paired with an odd
// kernel size.
func kernelSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// blurPlane applies a Gaussian blur to a 0..255 plane.
func blurPlane(p *plane, sigma float64) *plane {
	return redPlane(imaging.Blur(planeToGray(p), sigma))
}

// blurWeights blurs a 0..1 weight plane, keeping it in 0..1.
func blurWeights(w *plane, sigma float64) *plane {
	scaled := newPlane(w.w, w.h)
	for i, v := range w.pix {
		scaled.pix[i] = v * 255
	}
	out := blurPlane(scaled, sigma)
	for i := range out.pix {
		out.pix[i] /= 255
	}
	return out
}

// boxMean averages over a k×k window clipped to the raster.
func boxMean(p *plane, k int) *plane {
	r := k / 2
	w, h := p.w, p.h
	integral := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += float64(p.pix[y*w+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}
	out := newPlane(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := clampInt(y-r, 0, h-1), clampInt(y+r, 0, h-1)+1
		for x := 0; x < w; x++ {
			x0, x1 := clampInt(x-r, 0, w-1), clampInt(x+r, 0, w-1)+1
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			out.pix[y*w+x] = float32(sum / float64((y1-y0)*(x1-x0)))
		}
	}
	return out
}

// medianAt returns the median of the k×k neighbourhood of (x, y).
func medianAt(p *plane, x, y, k int) float32 {
	var hist [256]int
	r := k / 2
	n := 0
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			hist[clamp255(float64(p.reflect(x+dx, y+dy)))]++
			n++
		}
	}
	half := n / 2
	acc := 0
	for v, c := range hist {
		acc += c
		if acc > half {
			return float32(v)
		}
	}
	return p.pix[y*p.w+x]
}

// bilateral holds precomputed weights for an edge-preserving filter.
type bilateral struct {
	radius  int
	offsets []image.Point
	spatial []float64
	range_  []float64
}

func newBilateral(diameter int, sigmaColor, sigmaSpace float64, channels int) *bilateral {
	r := diameter / 2
	if r < 1 {
		r = 1
	}
	b := &bilateral{radius: r}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(r*r) {
				continue
			}
			b.offsets = append(b.offsets, image.Pt(dx, dy))
			b.spatial = append(b.spatial, math.Exp(-d2/(2*sigmaSpace*sigmaSpace)))
		}
	}
	b.range_ = make([]float64, 256*channels)
	for i := range b.range_ {
		d := float64(i)
		b.range_[i] = math.Exp(-d * d / (2 * sigmaColor * sigmaColor))
	}
	return b
}

// filterPlane runs the filter over every pixel of a plane.
func (b *bilateral) filterPlane(p *plane) *plane {
	out := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			c := p.pix[y*p.w+x]
			var sum, norm float64
			for i, o := range b.offsets {
				v := p.reflect(x+o.X, y+o.Y)
				diff := int(math.Abs(float64(v - c)))
				if diff > 255 {
					diff = 255
				}
				wgt := b.spatial[i] * b.range_[diff]
				sum += wgt * float64(v)
				norm += wgt
			}
			out.pix[y*p.w+x] = float32(sum / norm)
		}
	}
	return out
}

// colorAt filters one pixel of an RGB image using the L1 colour distance.
func (b *bilateral) colorAt(img *image.NRGBA, x, y int) (r, g, bl float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	ci := y*img.Stride + x*4
	cr, cg, cb := int(img.Pix[ci]), int(img.Pix[ci+1]), int(img.Pix[ci+2])
	var norm float64
	for i, o := range b.offsets {
		j := reflect101(y+o.Y, h)*img.Stride + reflect101(x+o.X, w)*4
		pr, pg, pb := int(img.Pix[j]), int(img.Pix[j+1]), int(img.Pix[j+2])
		diff := absInt(pr-cr) + absInt(pg-cg) + absInt(pb-cb)
		if diff >= len(b.range_) {
			diff = len(b.range_) - 1
		}
		wgt := b.spatial[i] * b.range_[diff]
		r += wgt * float64(pr)
		g += wgt * float64(pg)
		bl += wgt * float64(pb)
		norm += wgt
	}
	return r / norm, g / norm, bl / norm
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// structuring returns the offsets of an elliptical kernel.
func structuring(size int, ellipse bool) []image.Point {
	r := size / 2
	lim := (float64(r) + 0.5) * (float64(r) + 0.5)
	var pts []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if ellipse && float64(dx*dx+dy*dy) > lim {
				continue
			}
			pts = append(pts, image.Pt(dx, dy))
		}
	}
	return pts
}

// dilate sets a pixel when any kernel neighbour is set.
func dilate(m *mask, kernel []image.Point) *mask {
	out := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			for _, o := range kernel {
				xx, yy := x+o.X, y+o.Y
				if xx < 0 || yy < 0 || xx >= m.w || yy >= m.h {
					continue
				}
				if m.on[yy*m.w+xx] {
					out.on[y*m.w+x] = true
					break
				}
			}
		}
	}
	return out
}

// erode keeps a pixel only when every in-bounds kernel neighbour is set.
func erode(m *mask, kernel []image.Point) *mask {
	out := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			keep := m.on[y*m.w+x]
			for _, o := range kernel {
				if !keep {
					break
				}
				xx, yy := x+o.X, y+o.Y
				if xx < 0 || yy < 0 || xx >= m.w || yy >= m.h {
					continue
				}
				keep = m.on[yy*m.w+xx]
			}
			out.on[y*m.w+x] = keep
		}
	}
	return out
}

func morphClose(m *mask, kernel []image.Point) *mask { return erode(dilate(m, kernel), kernel) }
func morphOpen(m *mask, kernel []image.Point) *mask  { return dilate(erode(m, kernel), kernel) }

// sobel returns the 3×3 Sobel derivatives.
func sobel(p *plane) (gx, gy *plane) {
	gx, gy = newPlane(p.w, p.h), newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			tl, tc, tr := p.reflect(x-1, y-1), p.reflect(x, y-1), p.reflect(x+1, y-1)
			ml, mr := p.reflect(x-1, y), p.reflect(x+1, y)
			bl, bc, br := p.reflect(x-1, y+1), p.reflect(x, y+1), p.reflect(x+1, y+1)
			gx.pix[y*p.w+x] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy.pix[y*p.w+x] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return gx, gy
}

const tan22 = 0.41421356 // tan(22.5°)

// canny detects edges with non-maximum suppression and hysteresis. The
// caller is responsible for any pre-smoothing.
func canny(p *plane, low, high float64) *mask {
	w, h := p.w, p.h
	gx, gy := sobel(p)
	mag := newPlane(w, h)
	for i := range mag.pix {
		mag.pix[i] = float32(math.Abs(float64(gx.pix[i])) + math.Abs(float64(gy.pix[i])))
	}
	at := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag.pix[y*w+x]
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag.pix[i]
			if float64(m) <= low {
				continue
			}
			ax, ay := math.Abs(float64(gx.pix[i])), math.Abs(float64(gy.pix[i]))
			var n1, n2 float32
			switch {
			case ay <= ax*tan22:
				n1, n2 = at(x-1, y), at(x+1, y)
			case ay > ax/tan22:
				n1, n2 = at(x, y-1), at(x, y+1)
			case (gx.pix[i] > 0) == (gy.pix[i] > 0):
				n1, n2 = at(x-1, y-1), at(x+1, y+1)
			default:
				n1, n2 = at(x+1, y-1), at(x-1, y+1)
			}
			if !(m > n1 && m >= n2) {
				continue
			}
			if float64(m) > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	out := newMask(w, h)
	for _, i := range stack {
		out.on[i] = true
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if xx < 0 || yy < 0 || xx >= w || yy >= h {
					continue
				}
				j := yy*w + xx
				if state[j] == weak && !out.on[j] {
					out.on[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

// meanStd returns the mean and population standard deviation.
func meanStd(p *plane) (mean, std float64) {
	if len(p.pix) == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, v := range p.pix {
		f := float64(v)
		sum += f
		sq += f * f
	}
	n := float64(len(p.pix))
	mean = sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response.
func laplacianVariance(p *plane) float64 {
	if len(p.pix) == 0 {
		return 0
	}
	var sum, sq float64
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := float64(p.reflect(x-1, y) + p.reflect(x+1, y) + p.reflect(x, y-1) + p.reflect(x, y+1) - 4*p.pix[y*p.w+x])
			sum += v
			sq += v * v
		}
	}
	n := float64(len(p.pix))
	mean := sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		return 0
	}
	return variance
}

// blend mixes a and b per pixel: a·w + b·(1−w), clamped.
func blend(a, b *image.NRGBA, w *plane) *image.NRGBA {
	out := newOpaque(w.w, w.h)
	for y := 0; y < w.h; y++ {
		ra, rb, ro := a.Pix[y*a.Stride:], b.Pix[y*b.Stride:], out.Pix[y*out.Stride:]
		for x := 0; x < w.w; x++ {
			k := float64(w.pix[y*w.w+x])
			i := x * 4
			for c := 0; c < 3; c++ {
				ro[i+c] = clamp255(float64(ra[i+c])*k + float64(rb[i+c])*(1-k))
			}
		}
	}
	return out
}

// scaleChannels multiplies RGB by a per-pixel factor, clamped.
func scaleChannels(img *image.NRGBA, factor *plane) *image.NRGBA {
	out := newOpaque(factor.w, factor.h)
	for y := 0; y < factor.h; y++ {
		ri, ro := img.Pix[y*img.Stride:], out.Pix[y*out.Stride:]
		for x := 0; x < factor.w; x++ {
			f := float64(factor.pix[y*factor.w+x])
			i := x * 4
			for c := 0; c < 3; c++ {
				ro[i+c] = clamp255(float64(ri[i+c]) * f)
			}
		}
	}
	return out
}
