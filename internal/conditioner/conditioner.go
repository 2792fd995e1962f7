package conditioner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/sunshineplan/imgconv"

	"github.com/joseph-ayodele/idverify/internal/common"
)

// Stage names, in run order.
const (
	StageColorNormalize = "color_normalize"
	StageGrayscale      = "grayscale"
	StageDenoise        = "denoise"
	StageShadowRemoval  = "shadow_removal"
	StageDeskew         = "deskew"
	StagePerspective    = "perspective"
	StageThreshold      = "threshold"
	StageUpscale        = "upscale"
)

const DefaultMaxPixels = 12_000_000

type Config struct {
	// Skip lists stage names to leave out.
	Skip []string
	// MaxPixels bounds the input size; larger images are downscaled first.
	MaxPixels int
	// Debug keeps a PNG of each stage's output.
	Debug bool
}

// StageOutcome records what happened to one stage.
type StageOutcome struct {
	Name     string        `json:"name"`
	Skipped  bool          `json:"skipped"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type DebugFrame struct {
	Stage string `json:"stage"`
	PNG   []byte `json:"-"`
}

// Result is the conditioned page. Degraded is set when any stage failed and
// its input was passed through instead.
type Result struct {
	Image    *image.Gray
	Stages   []StageOutcome
	Degraded bool
	Debug    []DebugFrame
}

type stageFunc func(img image.Image) (image.Image, error)

type stage struct {
	name string
	fn   stageFunc
}

// Conditioner runs the ordered transform stages. It holds no per-call state.
type Conditioner struct {
	cfg    Config
	skip   map[string]bool
	stages []stage
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Conditioner {
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]bool, len(cfg.Skip))
	for _, s := range cfg.Skip {
		skip[s] = true
	}
	return &Conditioner{
		cfg:    cfg,
		skip:   skip,
		logger: logger,
		stages: []stage{
			{StageColorNormalize, stretchContrast},
			{StageGrayscale, grayscale},
			{StageDenoise, grayStage(bilateral)},
			{StageShadowRemoval, grayStage(removeShadows)},
			{StageDeskew, grayStage(deskew)},
			{StagePerspective, grayStage(correctPerspective)},
			{StageThreshold, grayStage(adaptiveThreshold)},
			{StageUpscale, grayStage(upscale2x)},
		},
	}
}

// StageNames lists every stage in run order.
func StageNames() []string {
	return []string{
		StageColorNormalize, StageGrayscale, StageDenoise, StageShadowRemoval,
		StageDeskew, StagePerspective, StageThreshold, StageUpscale,
	}
}

// Condition prepares one page for recognition. A failing stage never aborts
// the run; only a cancelled context does.
func (c *Conditioner) Condition(ctx context.Context, img image.Image) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, common.NewAppError("INVALID_IMAGE", "empty image", common.ErrInvalidInput)
	}

	var res Result
	cur := c.limitSize(img)
	for _, st := range c.stages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if c.skip[st.name] {
			res.Stages = append(res.Stages, StageOutcome{Name: st.name, Skipped: true})
			continue
		}

		start := time.Now()
		out, err := runStage(st, cur)
		outcome := StageOutcome{Name: st.name, Duration: time.Since(start)}
		if err != nil {
			outcome.Skipped = true
			outcome.Err = err.Error()
			res.Degraded = true
			c.logger.Warn("conditioner.stage.failed", "stage", st.name, "error", err)
		} else {
			cur = out
		}
		res.Stages = append(res.Stages, outcome)

		if c.cfg.Debug {
			if png, err := encodePNG(cur); err == nil {
				res.Debug = append(res.Debug, DebugFrame{Stage: st.name, PNG: png})
			}
		}
	}

	res.Image = toGray(cur)
	c.logger.Debug("conditioner.done",
		"width", res.Image.Bounds().Dx(),
		"height", res.Image.Bounds().Dy(),
		"degraded", res.Degraded,
	)
	return res, nil
}

// runStage turns a panic into an error so the previous image stays in place.
func runStage(st stage, img image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s panicked: %v", st.name, r)
		}
	}()
	out, err = st.fn(img)
	if err == nil && (out == nil || out.Bounds().Empty()) {
		err = fmt.Errorf("%s produced an empty image", st.name)
	}
	return out, err
}

func grayStage(fn func(*image.Gray) (*image.Gray, error)) stageFunc {
	return func(img image.Image) (image.Image, error) {
		out, err := fn(toGray(img))
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (c *Conditioner) limitSize(img image.Image) image.Image {
	b := img.Bounds()
	px := b.Dx() * b.Dy()
	if px <= c.cfg.MaxPixels {
		return img
	}
	scale := math.Sqrt(float64(c.cfg.MaxPixels) / float64(px))
	w := int(float64(b.Dx()) * scale)
	if w < 1 {
		w = 1
	}
	c.logger.Info("conditioner.downscale", "from_width", b.Dx(), "to_width", w)
	return imgconv.Resize(img, &imgconv.ResizeOption{Width: w})
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a page image: jpeg, png, gif, bmp, tiff, webp, or the first
// page of a PDF.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, common.NewAppError("INVALID_IMAGE", "empty page", common.ErrInvalidInput)
	}
	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError("INVALID_IMAGE", "decode page", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return img, nil
}
