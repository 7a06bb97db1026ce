package enhance

import "math"

// clahe applies contrast-limited adaptive histogram equalisation to an
// 8-bit plane. grid is the number of tiles per side; tiles at the right and
// bottom edge may be smaller.
func clahe(src *plane, clipLimit float64, grid int) *plane {
	w, h := src.w, src.h
	if w == 0 || h == 0 {
		return src.clone()
	}
	if grid < 1 {
		grid = 1
	}
	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid
	nx := (w + tileW - 1) / tileW
	ny := (h + tileH - 1) / tileH

	luts := make([][256]float32, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*nx+tx] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	out := newPlane(w, h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		ay := float32(fy - float64(ty0))
		ty1 := clampInt(ty0+1, 0, ny-1)
		ty0 = clampInt(ty0, 0, ny-1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			ax := float32(fx - float64(tx0))
			tx1 := clampInt(tx0+1, 0, nx-1)
			tx0 = clampInt(tx0, 0, nx-1)

			v := clamp255(float64(src.pix[y*w+x]))
			top := luts[ty0*nx+tx0][v]*(1-ax) + luts[ty0*nx+tx1][v]*ax
			bottom := luts[ty1*nx+tx0][v]*(1-ax) + luts[ty1*nx+tx1][v]*ax
			out.pix[y*w+x] = top*(1-ay) + bottom*ay
		}
	}
	return out
}

func tileLUT(src *plane, x0, y0, x1, y1 int, clipLimit float64) [256]float32 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[clamp255(float64(src.pix[y*src.w+x]))]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	if clipLimit > 0 {
		limit := int(clipLimit * float64(area) / 256)
		if limit < 1 {
			limit = 1
		}
		excess := 0
		for i, c := range hist {
			if c > limit {
				excess += c - limit
				hist[i] = limit
			}
		}
		each, rest := excess/256, excess%256
		for i := range hist {
			hist[i] += each
			if i < rest {
				hist[i]++
			}
		}
	}

	var lut [256]float32
	scale := 255 / float64(area)
	acc := 0
	for i, c := range hist {
		acc += c
		lut[i] = float32(math.Round(float64(acc) * scale))
	}
	return lut
}
