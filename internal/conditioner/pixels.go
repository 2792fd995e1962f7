package conditioner

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// toGray returns img as an origin-based *image.Gray, converting if needed.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
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

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// at reads with replicated borders.
func at(g *image.Gray, x, y int) uint8 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	return g.Pix[clampInt(y, 0, h-1)*g.Stride+clampInt(x, 0, w-1)]
}

// bilinear samples g at a fractional position with replicated borders.
func bilinear(g *image.Gray, fx, fy float64) uint8 {
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	dx, dy := fx-float64(x0), fy-float64(y0)
	p00 := float64(at(g, x0, y0))
	p10 := float64(at(g, x0+1, y0))
	p01 := float64(at(g, x0, y0+1))
	p11 := float64(at(g, x0+1, y0+1))
	top := p00 + (p10-p00)*dx
	bot := p01 + (p11-p01)*dx
	return clampByte(top + (bot-top)*dy)
}

// otsu picks the threshold that best separates the histogram into two classes.
func otsu(g *image.Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}
	var sumB float64
	wB := 0
	best, thr := -1.0, 127
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best, thr = between, t
		}
	}
	return uint8(thr)
}

type point struct{ x, y float64 }

// foreground samples dark pixels, at most roughly limit of them.
func foreground(g *image.Gray, limit int) []point {
	thr := otsu(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	step := 1
	for (w/step)*(h/step) > limit {
		step++
	}
	var pts []point
	for y := 0; y < h; y += step {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x += step {
			if row[x] <= thr {
				pts = append(pts, point{float64(x), float64(y)})
			}
		}
	}
	return pts
}
