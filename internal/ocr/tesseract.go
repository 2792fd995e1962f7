package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sunshineplan/imgconv"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

type TesseractConfig struct {
	Binary      string // default "tesseract"
	TessdataDir string
	PSM         int // 6 suits a uniform block of text
	OEM         int // 0 leaves tesseract's default
}

// TesseractEngine shells out to the tesseract CLI and rebuilds text and
// tokens from its TSV output.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg TesseractConfig, runner Runner, logger *slog.Logger) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, langs []string) (entity.RecognizedText, error) {
	tmpDir, err := os.MkdirTemp("", "idv-tess-*")
	if err != nil {
		return entity.RecognizedText{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "page.png")
	if err := writePNG(path, img); err != nil {
		return entity.RecognizedText{}, err
	}

	lang := joinLangs(langs)
	if lang == "" {
		lang = "eng"
	}
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, e.logger, args...)
	if err != nil {
		return entity.RecognizedText{}, e.classify(err, errb)
	}
	rt := ParseTSV(string(out), e.Name(), lang)
	e.logger.Debug("ocr.tesseract.ok", "lang", lang, "tokens", len(rt.Tokens), "mean_conf", rt.MeanConfidence)
	return rt, nil
}

func (e *TesseractEngine) classify(err error, stderr []byte) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: tesseract: %v", common.ErrRecognitionTimeout, err)
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: tesseract binary %q not found", common.ErrRecognitionUnavailable, e.cfg.Binary)
	default:
		return fmt.Errorf("%w: tesseract: %v: %s", common.ErrRecognitionUnavailable, err, truncate(strings.TrimSpace(string(stderr)), 512))
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imgconv.Write(f, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode page: %w", err)
	}
	return f.Close()
}

// ParseTSV rebuilds text from tesseract TSV rows:
// level page_num block_num par_num line_num word_num left top width height conf text.
// Word rows (level 5) become tokens with conf/100; line and block changes
// become newlines and blank lines.
func ParseTSV(tsv, engine, lang string) entity.RecognizedText {
	var tb entity.TextBuilder
	type lineKey struct{ page, block, par, line int }
	var last lineKey
	first := true

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 && strings.HasPrefix(ln, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.Join(cols[11:], " ")
		if strings.TrimSpace(text) == "" {
			continue
		}
		key := lineKey{atoi(cols[1]), atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		if !first && key != last {
			tb.Newline()
			if key.block != last.block || key.page != last.page {
				tb.Newline()
			}
		}
		first = false
		last = key
		if conf > 100 {
			conf = 100
		}
		tb.Word(text, conf/100)
	}
	return tb.Build(engine, lang)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
