package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// Engine turns a conditioned page into text with per-word confidences.
// langs are tesseract language codes ("eng", "hin", "ara").
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, langs []string) (entity.RecognizedText, error)
}

// SplitLangs turns "eng+hin" into ["eng", "hin"].
func SplitLangs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "+") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinLangs(langs []string) string { return strings.Join(langs, "+") }

// Chain tries engines in order; the first success wins.
type Chain struct {
	engines []Engine
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, engines ...Engine) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{engines: engines, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Recognize(ctx context.Context, img image.Image, langs []string) (entity.RecognizedText, error) {
	if len(c.engines) == 0 {
		return entity.RecognizedText{}, fmt.Errorf("no engines configured: %w", common.ErrRecognitionUnavailable)
	}
	var errs []error
	for _, e := range c.engines {
		rt, err := e.Recognize(ctx, img, langs)
		if err == nil {
			return rt, nil
		}
		c.logger.Warn("ocr.engine.failed", "engine", e.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return entity.RecognizedText{}, common.ClassifyRecognitionError(errors.Join(errs...))
}
