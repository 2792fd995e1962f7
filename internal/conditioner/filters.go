package conditioner

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	bilateralDiameter = 9
	bilateralSigmaC   = 75.0
	bilateralSigmaS   = 75.0

	closeKernel = 9

	claheClip  = 2.0
	claheTiles = 8

	thresholdBlock = 11
	thresholdC     = 2.0
)

// bilateral smooths noise while keeping edges.
func bilateral(g *image.Gray) (*image.Gray, error) {
	r := bilateralDiameter / 2
	w, h := g.Rect.Dx(), g.Rect.Dy()

	spatial := make([]float64, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(r*r) {
				continue
			}
			spatial[(dy+r)*(2*r+1)+dx+r] = math.Exp(-d2 / (2 * bilateralSigmaS * bilateralSigmaS))
		}
	}
	var rangeW [256]float64
	for i := range rangeW {
		rangeW[i] = math.Exp(-float64(i*i) / (2 * bilateralSigmaC * bilateralSigmaC))
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := g.Pix[y*g.Stride+x]
			var sum, norm float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					sw := spatial[(dy+r)*(2*r+1)+dx+r]
					if sw == 0 {
						continue
					}
					v := at(g, x+dx, y+dy)
					diff := int(v) - int(c)
					if diff < 0 {
						diff = -diff
					}
					wt := sw * rangeW[diff]
					sum += wt * float64(v)
					norm += wt
				}
			}
			out.Pix[y*out.Stride+x] = clampByte(sum / norm)
		}
	}
	return out, nil
}

// removeShadows divides by a morphological closing (the background estimate)
// and then equalizes local contrast.
func removeShadows(g *image.Gray) (*image.Gray, error) {
	closed := erode(dilate(g, closeKernel), closeKernel)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	flat := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bg := closed.Pix[y*closed.Stride+x]
			if bg == 0 {
				flat.Pix[y*flat.Stride+x] = 255
				continue
			}
			flat.Pix[y*flat.Stride+x] = clampByte(float64(g.Pix[y*g.Stride+x]) / float64(bg) * 255)
		}
	}
	return clahe(flat, claheClip, claheTiles), nil
}

func dilate(g *image.Gray, k int) *image.Gray { return morph(g, k, true) }
func erode(g *image.Gray, k int) *image.Gray  { return morph(g, k, false) }

// morph applies a separable k×k max (dilate) or min (erode) filter.
func morph(g *image.Gray, k int, useMax bool) *image.Gray {
	r := k / 2
	w, h := g.Rect.Dx(), g.Rect.Dy()
	pick := func(a, b uint8) uint8 {
		if (b > a) == useMax {
			return b
		}
		return a
	}

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(g, x, y)
			for d := -r; d <= r; d++ {
				v = pick(v, at(g, x+d, y))
			}
			tmp.Pix[y*tmp.Stride+x] = v
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(tmp, x, y)
			for d := -r; d <= r; d++ {
				v = pick(v, at(tmp, x, y+d))
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// clahe is contrast-limited adaptive histogram equalization over a tiles×tiles
// grid, with bilinear blending between neighboring tile mappings.
func clahe(g *image.Gray, clip float64, tiles int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < tiles || h < tiles {
		return g
	}
	tw, th := (w+tiles-1)/tiles, (h+tiles-1)/tiles

	luts := make([][256]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)
			var hist [256]int
			n := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[g.Pix[y*g.Stride+x]]++
					n++
				}
			}
			luts[ty*tiles+tx] = equalize(hist, n, clip)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(th) - 0.5
		ty0 := clampInt(int(math.Floor(fy)), 0, tiles-1)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		ay := math.Min(math.Max(fy-float64(ty0), 0), 1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			tx0 := clampInt(int(math.Floor(fx)), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			ax := math.Min(math.Max(fx-float64(tx0), 0), 1)

			v := g.Pix[y*g.Stride+x]
			top := (1-ax)*float64(luts[ty0*tiles+tx0][v]) + ax*float64(luts[ty0*tiles+tx1][v])
			bot := (1-ax)*float64(luts[ty1*tiles+tx0][v]) + ax*float64(luts[ty1*tiles+tx1][v])
			out.Pix[y*out.Stride+x] = clampByte((1-ay)*top + ay*bot)
		}
	}
	return out
}

func equalize(hist [256]int, n int, clip float64) [256]uint8 {
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	limit := int(clip * float64(n) / 256)
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
	bonus, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rest {
			hist[i]++
		}
	}
	acc := 0
	for i, c := range hist {
		acc += c
		lut[i] = clampByte(float64(acc) * 255 / float64(n))
	}
	return lut
}

// adaptiveThreshold binarizes against a Gaussian-weighted local mean.
func adaptiveThreshold(g *image.Gray) (*image.Gray, error) {
	r := thresholdBlock / 2
	sigma := 0.3*(float64(thresholdBlock-1)*0.5-1) + 0.8
	kernel := make([]float64, thresholdBlock)
	var ksum float64
	for i := range kernel {
		d := float64(i - r)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		ksum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	w, h := g.Rect.Dx(), g.Rect.Dy()
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for i, k := range kernel {
				s += k * float64(at(g, x+i-r, y))
			}
			tmp[y*w+x] = s
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for i, k := range kernel {
				yy := clampInt(y+i-r, 0, h-1)
				mean += k * tmp[yy*w+x]
			}
			if float64(g.Pix[y*g.Stride+x]) > mean-thresholdC {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, nil
}

func upscale2x(g *image.Gray) (*image.Gray, error) {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	draw.CatmullRom.Scale(out, out.Bounds(), g, b, draw.Src, nil)
	return out, nil
}
