package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/idverify/internal/common"
)

// NewEngine builds the fallback chain named by cfg.Engines. Engines that
// cannot be initialized are logged and left out; an empty chain is an error.
// The returned closer releases remote clients.
func NewEngine(ctx context.Context, cfg common.OCRConfig, runner Runner, logger *slog.Logger) (*Chain, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tcfg := TesseractConfig{
		Binary:      cfg.Tesseract,
		TessdataDir: cfg.TessdataDir,
		PSM:         cfg.PSM,
		OEM:         cfg.OEM,
	}

	var engines []Engine
	var closers []func() error
	for _, name := range cfg.Engines {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "tesseract":
			engines = append(engines, NewTesseractEngine(tcfg, runner, logger))
		case "gosseract":
			e, err := NewGosseractEngine(tcfg, logger)
			if err != nil {
				logger.Warn("ocr.engine.unavailable", "engine", name, "error", err)
				continue
			}
			engines = append(engines, e)
		case "vision":
			e, err := NewVisionEngine(ctx, cfg.VisionCredentials, logger)
			if err != nil {
				logger.Warn("ocr.engine.unavailable", "engine", name, "error", err)
				continue
			}
			engines = append(engines, e)
			closers = append(closers, e.Close)
		default:
			return nil, nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", name), common.ErrInvalidInput)
		}
	}
	if len(engines) == 0 {
		return nil, nil, fmt.Errorf("no usable OCR engine among %v: %w", cfg.Engines, common.ErrRecognitionUnavailable)
	}

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	chain := NewChain(logger, engines...)
	logger.Info("ocr.engines.ready", "engines", chain.Name())
	return chain, closeAll, nil
}

// ConverterFromConfig maps the OCR config onto the page converter.
func ConverterFromConfig(cfg common.OCRConfig, runner Runner, logger *slog.Logger) *Converter {
	return NewConverter(ConvertConfig{
		Pdftoppm:      cfg.Pdftoppm,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		HeicConverter: cfg.HeicConverter,
	}, runner, logger)
}
