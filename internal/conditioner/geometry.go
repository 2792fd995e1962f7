package conditioner

import (
	"errors"
	"image"
	"math"
	"sort"
)

const (
	minSkewDegrees   = 0.5
	maxSamplePoints  = 200_000
	minQuadCoverage  = 0.5
	minQuadDeviation = 0.02
	minCornerDegrees = 60
)

var errSingularMatrix = errors.New("singular homography")

// deskew rotates the page so the minimum-area rectangle around the
// foreground is axis aligned.
func deskew(g *image.Gray) (*image.Gray, error) {
	pts := foreground(g, maxSamplePoints)
	if len(pts) < 3 {
		return g, nil
	}
	angle := skewAngle(convexHull(pts))
	if math.Abs(angle) < minSkewDegrees {
		return g, nil
	}
	return rotate(g, angle*math.Pi/180), nil
}

// skewAngle runs rotating calipers over the hull and returns the angle, in
// degrees within (-45, 45], of the minimum-area enclosing rectangle.
func skewAngle(hull []point) float64 {
	if len(hull) < 3 {
		return 0
	}
	bestArea := math.Inf(1)
	best := 0.0
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		theta := math.Atan2(b.y-a.y, b.x-a.x)
		cos, sin := math.Cos(theta), math.Sin(theta)
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.x*cos + p.y*sin
			v := -p.x*sin + p.y*cos
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		if area := (maxU - minU) * (maxV - minV); area < bestArea {
			bestArea, best = area, theta
		}
	}
	deg := best * 180 / math.Pi
	for deg > 45 {
		deg -= 90
	}
	for deg <= -45 {
		deg += 90
	}
	return deg
}

// convexHull is Andrew's monotone chain; the result is counter-clockwise
// without the closing point.
func convexHull(pts []point) []point {
	p := make([]point, len(pts))
	copy(p, pts)
	sort.Slice(p, func(i, j int) bool {
		if p[i].x != p[j].x {
			return p[i].x < p[j].x
		}
		return p[i].y < p[j].y
	})
	if len(p) < 3 {
		return p
	}
	cross := func(o, a, b point) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}
	hull := make([]point, 0, 2*len(p))
	for _, q := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		q := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return hull[:len(hull)-1]
}

// rotate turns g by -theta around its center, replicating border pixels.
func rotate(g *image.Gray, theta float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	cx, cy := float64(w-1)/2, float64(h-1)/2
	cos, sin := math.Cos(theta), math.Sin(theta)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			sx := cx + cos*dx - sin*dy
			sy := cy + sin*dx + cos*dy
			out.Pix[y*out.Stride+x] = bilinear(g, sx, sy)
		}
	}
	return out
}

// correctPerspective warps the page when the foreground forms a clearly
// non-rectangular quadrilateral. Otherwise the image passes through.
func correctPerspective(g *image.Gray) (*image.Gray, error) {
	pts := foreground(g, maxSamplePoints)
	if len(pts) < 4 {
		return g, nil
	}
	quad := extremeCorners(pts)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if !warpWorthy(quad, w, h) {
		return g, nil
	}

	top := dist(quad[0], quad[1])
	bottom := dist(quad[3], quad[2])
	left := dist(quad[0], quad[3])
	right := dist(quad[1], quad[2])
	ow, oh := int(math.Max(top, bottom)), int(math.Max(left, right))
	if ow < 2 || oh < 2 {
		return g, nil
	}

	rect := [4]point{{0, 0}, {float64(ow - 1), 0}, {float64(ow - 1), float64(oh - 1)}, {0, float64(oh - 1)}}
	hm, err := homography(rect, quad)
	if err != nil {
		return nil, err
	}
	out := image.NewGray(image.Rect(0, 0, ow, oh))
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			fx, fy := float64(x), float64(y)
			den := hm[6]*fx + hm[7]*fy + 1
			if den == 0 {
				continue
			}
			sx := (hm[0]*fx + hm[1]*fy + hm[2]) / den
			sy := (hm[3]*fx + hm[4]*fy + hm[5]) / den
			out.Pix[y*out.Stride+x] = bilinear(g, sx, sy)
		}
	}
	return out, nil
}

// extremeCorners returns top-left, top-right, bottom-right, bottom-left.
func extremeCorners(pts []point) [4]point {
	q := [4]point{pts[0], pts[0], pts[0], pts[0]}
	for _, p := range pts {
		if p.x+p.y < q[0].x+q[0].y {
			q[0] = p
		}
		if p.x-p.y > q[1].x-q[1].y {
			q[1] = p
		}
		if p.x+p.y > q[2].x+q[2].y {
			q[2] = p
		}
		if p.x-p.y < q[3].x-q[3].y {
			q[3] = p
		}
	}
	return q
}

// warpWorthy: convex with no corner sharper than 60 degrees, at least half
// the page, and bent by more than 2% of the page diagonal from its own
// bounding box.
func warpWorthy(q [4]point, w, h int) bool {
	sign := 0.0
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		cr := (b.x-a.x)*(c.y-b.y) - (b.y-a.y)*(c.x-b.x)
		if cr == 0 || (sign != 0 && math.Signbit(cr) != math.Signbit(sign)) {
			return false
		}
		sign = cr
	}

	for i := 0; i < 4; i++ {
		prev, cur, next := q[(i+3)%4], q[i], q[(i+1)%4]
		a1 := math.Atan2(prev.y-cur.y, prev.x-cur.x)
		a2 := math.Atan2(next.y-cur.y, next.x-cur.x)
		deg := math.Abs(a1-a2) * 180 / math.Pi
		if deg > 180 {
			deg = 360 - deg
		}
		if deg < minCornerDegrees || deg > 180-minCornerDegrees {
			return false
		}
	}

	area := 0.0
	for i := 0; i < 4; i++ {
		a, b := q[i], q[(i+1)%4]
		area += a.x*b.y - b.x*a.y
	}
	if math.Abs(area)/2 < minQuadCoverage*float64(w*h) {
		return false
	}

	minX, maxX := math.Min(q[0].x, q[3].x), math.Max(q[1].x, q[2].x)
	minY, maxY := math.Min(q[0].y, q[1].y), math.Max(q[2].y, q[3].y)
	box := [4]point{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
	dev := 0.0
	for i := range q {
		dev = math.Max(dev, dist(q[i], box[i]))
	}
	diag := math.Hypot(float64(w), float64(h))
	return dev > minQuadDeviation*diag
}

func dist(a, b point) float64 { return math.Hypot(a.x-b.x, a.y-b.y) }

// homography solves for the 3×3 matrix (h33 = 1) mapping src onto dst.
func homography(src, dst [4]point) ([8]float64, error) {
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y, u, v := src[i].x, src[i].y, dst[i].x, dst[i].y
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -u * x, -u * y, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -v * x, -v * y, v}
	}
	for col := 0; col < 8; col++ {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, errSingularMatrix
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c < 9; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	var hm [8]float64
	for i := range hm {
		hm[i] = a[i][8] / a[i][i]
	}
	return hm, nil
}

