//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
	"github.com/sunshineplan/imgconv"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// GosseractAvailable reports whether the binary was built with libtesseract.
const GosseractAvailable = true

// GosseractEngine drives libtesseract in-process. A client is created per
// call since gosseract clients are not safe for concurrent use.
type GosseractEngine struct {
	cfg    TesseractConfig
	logger *slog.Logger
}

func NewGosseractEngine(cfg TesseractConfig, logger *slog.Logger) (*GosseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &GosseractEngine{cfg: cfg, logger: logger}, nil
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) Recognize(ctx context.Context, img image.Image, langs []string) (entity.RecognizedText, error) {
	if err := ctx.Err(); err != nil {
		return entity.RecognizedText{}, common.ClassifyRecognitionError(err)
	}
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return entity.RecognizedText{}, fmt.Errorf("encode page: %w", err)
	}

	c := gosseract.NewClient()
	defer func() { _ = c.Close() }()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return entity.RecognizedText{}, fmt.Errorf("%w: set tessdata: %v", common.ErrRecognitionUnavailable, err)
		}
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return entity.RecognizedText{}, fmt.Errorf("%w: set languages: %v", common.ErrRecognitionUnavailable, err)
		}
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return entity.RecognizedText{}, fmt.Errorf("%w: set psm: %v", common.ErrRecognitionUnavailable, err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return entity.RecognizedText{}, fmt.Errorf("%w: set image: %v", common.ErrRecognitionUnavailable, err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return entity.RecognizedText{}, fmt.Errorf("%w: recognize: %v", common.ErrRecognitionUnavailable, err)
	}

	var tb entity.TextBuilder
	type lineKey struct{ block, par, line int }
	var last lineKey
	for i, b := range boxes {
		if b.Word == "" || b.Confidence < 0 {
			continue
		}
		key := lineKey{b.BlockNum, b.ParNum, b.LineNum}
		if i > 0 && key != last {
			tb.Newline()
			if key.block != last.block {
				tb.Newline()
			}
		}
		last = key
		tb.Word(b.Word, b.Confidence/100)
	}
	return tb.Build(e.Name(), joinLangs(langs)), nil
}
