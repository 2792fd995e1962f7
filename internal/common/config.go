package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Verify   VerifyConfig
}

// DatabaseConfig holds result-store configuration. DSN selects the backend:
// postgres:// for pgx, sqlite:<path> or a bare file path for SQLite.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCHealthAddr string
	MaxUploadBytes int64
	RateLimit      float64 // requests per second, 0 disables
	RateBurst      int
	AllowedOrigins []string
}

// OCRConfig holds recognition-engine configuration
type OCRConfig struct {
	Engines           []string // ordered: tesseract | gosseract | vision
	Languages         string   // probe pass, tesseract codes joined by "+"
	Refine            bool     // re-recognize with the detected script's languages
	Tesseract         string
	TessdataDir       string
	PSM               int
	OEM               int
	Pdftoppm          string
	DPI               int
	MaxPages          int
	HeicConverter     string
	VisionCredentials string
	Timeout           time.Duration
}

// LLMConfig holds secondary-extractor configuration
type LLMConfig struct {
	Enabled     bool
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// PipelineConfig holds extraction thresholds and conditioning switches
type PipelineConfig struct {
	ReconcileThreshold float64
	MinorityShare      float64
	PageConcurrency    int
	Debug              bool
	SkipStages         []string
	MaxPixels          int
	Workers            int
	QueueSize          int
	ProcessTimeout     time.Duration
	PacksDir           string // overrides the embedded field packs when set
}

// VerifyConfig holds verifier thresholds
type VerifyConfig struct {
	MismatchThreshold float64
	PassThreshold     float64
	SubstringFloor    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "sqlite:idverify.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ":8081"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 20)) << 20,
			RateLimit:      getEnvAsFloat64("RATE_LIMIT_RPS", 10),
			RateBurst:      getEnvAsInt("RATE_LIMIT_BURST", 20),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		OCR: OCRConfig{
			Engines:           getEnvAsList("OCR_ENGINES", []string{"tesseract"}),
			Languages:         getEnv("OCR_LANGS", "eng+hin+ara"),
			Refine:            getEnvAsBool("OCR_REFINE", true),
			Tesseract:         getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:       getEnv("TESSDATA_PREFIX", ""),
			PSM:               getEnvAsInt("TESSERACT_PSM", 6),
			OEM:               getEnvAsInt("TESSERACT_OEM", 0),
			Pdftoppm:          getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:               getEnvAsInt("OCR_DPI", 300),
			MaxPages:          getEnvAsInt("OCR_MAX_PAGES", 10),
			HeicConverter:     getEnv("HEIC_CONVERTER", "magick"),
			VisionCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Timeout:           getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Enabled:     getEnvAsBool("LLM_FALLBACK_ENABLED", true),
			BaseURL:     getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("LLM_MODEL", "openai/gpt-4o-mini"),
			APIKey:      getEnv("OPENROUTER_API_KEY", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 500),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			ReconcileThreshold: getEnvAsFloat64("PIPELINE_RECONCILE_THRESHOLD", 0.75),
			MinorityShare:      getEnvAsFloat64("SCRIPT_MINORITY_SHARE", 0.15),
			PageConcurrency:    getEnvAsInt("PIPELINE_PAGE_CONCURRENCY", 2),
			Debug:              getEnvAsBool("CONDITIONER_DEBUG", false),
			SkipStages:         getEnvAsList("CONDITIONER_SKIP_STAGES", nil),
			MaxPixels:          getEnvAsInt("CONDITIONER_MAX_PIXELS", 12_000_000),
			Workers:            getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:          getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			ProcessTimeout:     getEnvAsDuration("BATCH_PROCESS_TIMEOUT", 3*time.Minute),
			PacksDir:           getEnv("FIELD_PACKS_DIR", ""),
		},
		Verify: VerifyConfig{
			MismatchThreshold: getEnvAsFloat64("VERIFY_MISMATCH_THRESHOLD", 0.8),
			PassThreshold:     getEnvAsFloat64("VERIFY_PASS_THRESHOLD", 0.85),
			SubstringFloor:    getEnvAsFloat64("VERIFY_SUBSTRING_FLOOR", 0),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if len(c.OCR.Engines) == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINES must name at least one engine", ErrInvalidInput)
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY is required when LLM_FALLBACK_ENABLED is set", ErrInvalidInput)
	}
	if !inUnit(c.Pipeline.ReconcileThreshold) {
		return NewAppError("CONFIG_ERROR", "PIPELINE_RECONCILE_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	if !inUnit(c.Pipeline.MinorityShare) {
		return NewAppError("CONFIG_ERROR", "SCRIPT_MINORITY_SHARE must be in [0,1]", ErrInvalidInput)
	}
	if !inUnit(c.Verify.MismatchThreshold) || !inUnit(c.Verify.PassThreshold) || !inUnit(c.Verify.SubstringFloor) {
		return NewAppError("CONFIG_ERROR", "verifier thresholds must be in [0,1]", ErrInvalidInput)
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
