package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// ConvertConfig names the external converters used before decoding.
type ConvertConfig struct {
	Pdftoppm      string // default "pdftoppm"
	DPI           int    // default 300
	MaxPages      int    // 0 = no cap
	HeicConverter string // heif-convert | magick | sips
}

// Converter turns uploads the image decoder cannot read (PDF, HEIC) into PNG
// pages. Everything else passes through untouched.
type Converter struct {
	cfg    ConvertConfig
	runner Runner
	logger *slog.Logger
}

func NewConverter(cfg ConvertConfig, runner Runner, logger *slog.Logger) *Converter {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{cfg: cfg, runner: runner, logger: logger}
}

// Kind of an uploaded page, sniffed from content first and the name second.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindHEIC  Kind = "heic"
)

var heicBrands = []string{"heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1"}

// Sniff classifies a page.
func Sniff(p entity.RawPage) Kind {
	d := p.Data
	if bytes.HasPrefix(d, []byte("%PDF-")) {
		return KindPDF
	}
	if len(d) >= 12 && string(d[4:8]) == "ftyp" {
		brand := string(d[8:12])
		for _, b := range heicBrands {
			if brand == b {
				return KindHEIC
			}
		}
	}
	// a content type naming pdf or heic wins over the extension
	for _, ext := range []string{constants.MapMimeToExt(p.MimeType), constants.NormalizeExt(filepath.Ext(p.Filename))} {
		switch {
		case constants.MapExtToFormat(ext) == constants.PDF:
			return KindPDF
		case constants.IsHEICExt(ext):
			return KindHEIC
		}
	}
	return KindImage
}

// Images returns decodable image bytes for one uploaded page. A PDF yields
// one entry per rendered page.
func (c *Converter) Images(ctx context.Context, p entity.RawPage) ([][]byte, error) {
	switch Sniff(p) {
	case KindPDF:
		return c.RasterizePDF(ctx, p.Data)
	case KindHEIC:
		png, err := c.ConvertHEIC(ctx, p.Data)
		if err != nil {
			return nil, err
		}
		return [][]byte{png}, nil
	default:
		return [][]byte{p.Data}, nil
	}
}

// RasterizePDF renders each page with pdftoppm at the configured DPI.
func (c *Converter) RasterizePDF(ctx context.Context, data []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "idv-pp-*")
	if err != nil {
		return nil, err
	}
	defer c.cleanup(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(c.cfg.DPI), "-png"}
	if c.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(c.cfg.MaxPages))
	}
	args = append(args, in, prefix)

	if _, errb, err := c.runner.Run(ctx, c.cfg.Pdftoppm, c.logger, args...); err != nil {
		return nil, c.converterError("pdftoppm", errb, err)
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if c.cfg.MaxPages > 0 && len(matches) > c.cfg.MaxPages {
		matches = matches[:c.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, common.NewAppError("INVALID_DOCUMENT", "pdftoppm produced no pages", common.ErrInvalidInput)
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, b)
	}
	c.logger.Debug("ocr.pdf.rasterized", "pages", len(pages), "dpi", c.cfg.DPI)
	return pages, nil
}

// ConvertHEIC converts a HEIC/HEIF photo to PNG with the configured tool.
func (c *Converter) ConvertHEIC(ctx context.Context, data []byte) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "idv-heic-*")
	if err != nil {
		return nil, err
	}
	defer c.cleanup(tmpDir)

	in := filepath.Join(tmpDir, "in.heic")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}
	out := filepath.Join(tmpDir, "page.png")

	var errb []byte
	switch c.cfg.HeicConverter {
	case "heif-convert":
		_, errb, err = c.runner.Run(ctx, "heif-convert", c.logger, in, out)
	case "magick":
		_, errb, err = c.runner.Run(ctx, "magick", c.logger, in, out)
	case "sips":
		_, errb, err = c.runner.Run(ctx, "sips", c.logger, "-s", "format", "png", in, "--out", out)
	default:
		return nil, common.NewAppError("UNSUPPORTED_FORMAT",
			"HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips", common.ErrInvalidInput)
	}
	if err != nil {
		return nil, c.converterError(c.cfg.HeicConverter, errb, err)
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	return png, nil
}

func (c *Converter) converterError(tool string, stderr []byte, err error) error {
	msg := strings.TrimSpace(truncate(string(stderr), 512))
	if msg == "" {
		msg = err.Error()
	}
	return common.ClassifyRecognitionError(fmt.Errorf("%s failed: %s: %w", tool, msg, err))
}

func (c *Converter) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
	}
}
