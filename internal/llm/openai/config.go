package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/confidence"
)

// Config for an OpenAI-compatible chat/completions endpoint. The defaults
// target OpenRouter.
type Config struct {
	APIKey          string        // if empty, falls back to env OPENROUTER_API_KEY then OPENAI_API_KEY
	BaseURL         string        // default https://openrouter.ai/api/v1
	Model           string        // default openai/gpt-4o-mini
	Temperature     float32       // default 0.1
	MaxTokens       int           // default 500
	Timeout         time.Duration // http client timeout
	LenientOptional bool
	AppTitle        string // sent as X-Title to OpenRouter
}

type Client struct {
	cfg    Config
	http   *http.Client
	scorer *confidence.Scorer
	log    *slog.Logger
}

func NewClient(cfg Config, scorer *confidence.Scorer, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AppTitle == "" {
		cfg.AppTitle = "idverify"
	}
	if scorer == nil {
		scorer = confidence.NewScorer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		scorer: scorer,
		log:    logger,
	}
}

// FromConfig maps the application LLM settings onto a client config.
func FromConfig(c common.LLMConfig) Config {
	return Config{
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		Timeout:         c.Timeout,
		LenientOptional: true,
	}
}
