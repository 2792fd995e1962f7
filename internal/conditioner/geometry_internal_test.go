package conditioner

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rotatedRect(deg float64) []point {
	th := deg * math.Pi / 180
	cos, sin := math.Cos(th), math.Sin(th)
	var pts []point
	for u := -100.0; u <= 100; u += 2 {
		for v := -30.0; v <= 30; v += 2 {
			pts = append(pts, point{x: 300 + u*cos - v*sin, y: 200 + u*sin + v*cos})
		}
	}
	return pts
}

func TestSkewAngle(t *testing.T) {
	for _, deg := range []float64{0, 3, 10, -7, 30} {
		got := skewAngle(convexHull(rotatedRect(deg)))
		assert.InDelta(t, deg, got, 0.5, "rotation %v", deg)
	}
}

func TestSkewAngle_Range(t *testing.T) {
	got := skewAngle(convexHull(rotatedRect(80)))
	assert.InDelta(t, -10, got, 0.5)
}

func TestRotate_ZeroIsIdentity(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 5, 4))
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 10)
	}
	assert.Equal(t, g.Pix, rotate(g, 0).Pix)
}

func TestHomography_Identity(t *testing.T) {
	sq := [4]point{{0, 0}, {9, 0}, {9, 9}, {0, 9}}
	hm, err := homography(sq, sq)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 1, 0, 0, 0}, hm[:], 1e-9)
}

func TestWarpWorthy(t *testing.T) {
	square := [4]point{{0, 0}, {99, 0}, {99, 99}, {0, 99}}
	assert.False(t, warpWorthy(square, 100, 100), "axis aligned")

	skewed := [4]point{{10, 0}, {95, 8}, {99, 99}, {0, 90}}
	assert.True(t, warpWorthy(skewed, 100, 100))

	small := [4]point{{0, 0}, {30, 5}, {30, 30}, {0, 30}}
	assert.False(t, warpWorthy(small, 100, 100), "too small")
}

func TestCondition_FailingStageDegrades(t *testing.T) {
	c := New(Config{}, nil)
	c.stages = []stage{
		{name: StageGrayscale, fn: grayscale},
		{name: "broken", fn: func(image.Image) (image.Image, error) { return nil, errors.New("boom") }},
		{name: "panics", fn: func(image.Image) (image.Image, error) { panic("bad stage") }},
	}

	img := image.NewGray(image.Rect(0, 0, 6, 6))
	res, err := c.Condition(context.Background(), img)
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	require.Len(t, res.Stages, 3)
	assert.False(t, res.Stages[0].Skipped)
	assert.True(t, res.Stages[1].Skipped)
	assert.Equal(t, "boom", res.Stages[1].Err)
	assert.True(t, res.Stages[2].Skipped)
	assert.Contains(t, res.Stages[2].Err, "panicked")
	assert.Equal(t, image.Rect(0, 0, 6, 6), res.Image.Bounds())
}
