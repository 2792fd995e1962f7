package conditioner

import (
	"image"
)

// stretchContrast maps each channel's 1st..99th percentile onto 0..255.
func stretchContrast(img image.Image) (image.Image, error) {
	rgba := toRGBA(img)
	n := len(rgba.Pix) / 4
	if n == 0 {
		return rgba, nil
	}

	for ch := 0; ch < 3; ch++ {
		var hist [256]int
		for i := ch; i < len(rgba.Pix); i += 4 {
			hist[rgba.Pix[i]]++
		}
		lo, hi := percentile(hist, n, 0.01), percentile(hist, n, 0.99)
		if hi <= lo {
			continue
		}
		var lut [256]uint8
		scale := 255 / float64(hi-lo)
		for v := range lut {
			lut[v] = clampByte(float64(v-lo) * scale)
		}
		for i := ch; i < len(rgba.Pix); i += 4 {
			rgba.Pix[i] = lut[rgba.Pix[i]]
		}
	}
	return rgba, nil
}

func percentile(hist [256]int, n int, p float64) int {
	target := int(p * float64(n))
	acc := 0
	for v, c := range hist {
		acc += c
		if acc > target {
			return v
		}
	}
	return 255
}

// grayscale converts with BT.601 luma weights.
func grayscale(img image.Image) (image.Image, error) {
	rgba := toRGBA(img)
	b := rgba.Bounds()
	g := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := g.Pix[y*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, gr, bl := float64(src[4*x]), float64(src[4*x+1]), float64(src[4*x+2])
			dst[x] = clampByte(0.299*r + 0.587*gr + 0.114*bl)
		}
	}
	return g, nil
}
