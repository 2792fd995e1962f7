package conditioner_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/internal/conditioner"
)

func page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 230, G: 225, B: 210, A: 255}
			if y%8 < 2 && x > 4 && x < w-4 {
				c = color.RGBA{R: 20, G: 20, B: 30, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func skipAllBut(keep ...string) []string {
	var skip []string
	for _, s := range conditioner.StageNames() {
		found := false
		for _, k := range keep {
			if s == k {
				found = true
			}
		}
		if !found {
			skip = append(skip, s)
		}
	}
	return skip
}

func TestCondition_RunsEveryStage(t *testing.T) {
	c := conditioner.New(conditioner.Config{}, nil)

	res, err := c.Condition(context.Background(), page(48, 40))
	require.NoError(t, err)
	require.NotNil(t, res.Image)

	names := make([]string, len(res.Stages))
	for i, s := range res.Stages {
		names[i] = s.Name
	}
	assert.Equal(t, conditioner.StageNames(), names)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Debug)
}

func TestCondition_UpscaleDoublesSize(t *testing.T) {
	c := conditioner.New(conditioner.Config{Skip: skipAllBut(conditioner.StageGrayscale, conditioner.StageUpscale)}, nil)

	res, err := c.Condition(context.Background(), page(30, 20))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 40), res.Image.Bounds())

	skipped := 0
	for _, s := range res.Stages {
		if s.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 6, skipped)
	assert.False(t, res.Degraded)
}

func TestCondition_ThresholdIsBinary(t *testing.T) {
	c := conditioner.New(conditioner.Config{Skip: skipAllBut(conditioner.StageGrayscale, conditioner.StageThreshold)}, nil)

	res, err := c.Condition(context.Background(), page(32, 32))
	require.NoError(t, err)
	for _, v := range res.Image.Pix {
		assert.True(t, v == 0 || v == 255)
	}
}

func TestCondition_DebugFrames(t *testing.T) {
	c := conditioner.New(conditioner.Config{Debug: true, Skip: skipAllBut(conditioner.StageGrayscale)}, nil)

	res, err := c.Condition(context.Background(), page(16, 16))
	require.NoError(t, err)
	require.Len(t, res.Debug, 1)
	assert.Equal(t, conditioner.StageGrayscale, res.Debug[0].Stage)
	assert.True(t, bytes.HasPrefix(res.Debug[0].PNG, []byte("\x89PNG")))
}

func TestCondition_DownscalesLargeInput(t *testing.T) {
	c := conditioner.New(conditioner.Config{MaxPixels: 100, Skip: conditioner.StageNames()}, nil)

	res, err := c.Condition(context.Background(), page(40, 40))
	require.NoError(t, err)
	b := res.Image.Bounds()
	assert.LessOrEqual(t, b.Dx()*b.Dy(), 121)
}

func TestCondition_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conditioner.New(conditioner.Config{}, nil).Condition(ctx, page(8, 8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCondition_EmptyImage(t *testing.T) {
	_, err := conditioner.New(conditioner.Config{}, nil).Condition(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, page(12, 9)))

	img, err := conditioner.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	_, err = conditioner.Decode(nil)
	assert.Error(t, err)
	_, err = conditioner.Decode([]byte("not an image"))
	assert.Error(t, err)
}
