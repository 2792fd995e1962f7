package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

// Pipeline is the part of pipeline.Service the API exposes.
type Pipeline interface {
	Extract(ctx context.Context, doc entity.RawDocument, opts ...pipeline.ExtractOption) (pipeline.ExtractResponse, error)
	Verify(ctx context.Context, submitted, extracted map[string]string) entity.VerificationReport
	VerifyExtraction(ctx context.Context, id uuid.UUID, submitted map[string]string) (entity.VerificationReport, error)
	Extraction(ctx context.Context, id uuid.UUID) (entity.ExtractionRecord, error)
}

type Exporter interface {
	ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

type Server struct {
	svc     Pipeline
	export  Exporter
	health  HealthFunc
	cfg     common.ServerConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds the HTTP API. export and health may be nil.
func New(svc Pipeline, export Exporter, health HealthFunc, cfg common.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	s := &Server{svc: svc, export: export, health: health, cfg: cfg, logger: logger}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/extract", s.handleExtract)
		r.Post("/verify", s.handleVerify)
		r.Get("/extractions/{id}", s.handleGetExtraction)
		r.Get("/export.xlsx", s.handleExport)
	})
	return r
}

// requestID honors an incoming X-Request-ID or assigns a UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", common.RequestIDFromContext(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
