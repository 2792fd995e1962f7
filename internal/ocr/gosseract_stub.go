//go:build !gosseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// GosseractAvailable reports whether the binary was built with libtesseract
// (go build -tags gosseract).
const GosseractAvailable = false

type GosseractEngine struct{}

func NewGosseractEngine(TesseractConfig, *slog.Logger) (*GosseractEngine, error) {
	return nil, fmt.Errorf("%w: built without the gosseract tag", common.ErrRecognitionUnavailable)
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) Recognize(context.Context, image.Image, []string) (entity.RecognizedText, error) {
	return entity.RecognizedText{}, common.ErrRecognitionUnavailable
}
