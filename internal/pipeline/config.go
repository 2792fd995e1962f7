package pipeline

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/conditioner"
	"github.com/joseph-ayodele/idverify/internal/ocr"
)

// Config holds the orchestration knobs. Component thresholds live with the
// components.
type Config struct {
	ProbeLangs      []string // first recognition pass
	Refine          bool     // re-recognize with the detected script's languages
	PageConcurrency int
	OCRTimeout      time.Duration // per page, probe and refine together
	LLMTimeout      time.Duration
	Debug           bool // attach stage logs and frames to every response
	Conditioner     conditioner.Config
}

// ConfigFrom maps the application config.
func ConfigFrom(c *common.Config) Config {
	return Config{
		ProbeLangs:      ocr.SplitLangs(c.OCR.Languages),
		Refine:          c.OCR.Refine,
		PageConcurrency: c.Pipeline.PageConcurrency,
		OCRTimeout:      c.OCR.Timeout,
		LLMTimeout:      c.LLM.Timeout,
		Debug:           c.Pipeline.Debug,
		Conditioner: conditioner.Config{
			Skip:      c.Pipeline.SkipStages,
			MaxPixels: c.Pipeline.MaxPixels,
		},
	}
}

func (c *Config) setDefaults() {
	if len(c.ProbeLangs) == 0 {
		c.ProbeLangs = []string{"eng", "hin", "ara"}
	}
	if c.PageConcurrency <= 0 {
		c.PageConcurrency = 2
	}
}

func (c Config) probe() string { return strings.Join(c.ProbeLangs, "+") }
