// Package app wires configuration into a ready pipeline, store and exporter
// for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/confidence"
	"github.com/joseph-ayodele/idverify/internal/export"
	"github.com/joseph-ayodele/idverify/internal/fields"
	"github.com/joseph-ayodele/idverify/internal/llm/openai"
	"github.com/joseph-ayodele/idverify/internal/ocr"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
	"github.com/joseph-ayodele/idverify/internal/reconcile"
	"github.com/joseph-ayodele/idverify/internal/repository"
	"github.com/joseph-ayodele/idverify/internal/script"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

type Options struct {
	InMemory bool // SQLite in memory instead of DB_URL
	NoStore  bool // run without persistence
	Runner   ocr.Runner
}

type App struct {
	Config   *common.Config
	Store    *repository.Store // nil with NoStore
	Pipeline *pipeline.Service
	Export   *export.Service // nil with NoStore

	logger  *slog.Logger
	closers []func() error
}

// Build assembles the application. Call Close when done.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Runner == nil {
		opts.Runner = ocr.ExecRunner()
	}
	a := &App{Config: cfg, logger: logger}

	table, err := loadTable(cfg.Pipeline.PacksDir)
	if err != nil {
		return nil, err
	}

	engine, closeEngine, err := ocr.NewEngine(ctx, cfg.OCR, opts.Runner, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeEngine)

	scorer := confidence.NewScorer(nil)
	detector := script.NewDetector(cfg.Pipeline.MinorityShare)
	deps := pipeline.Deps{
		Engine:     engine,
		Converter:  ocr.ConverterFromConfig(cfg.OCR, opts.Runner, logger),
		Extractor:  fields.NewExtractor(table, logger),
		Detector:   &detector,
		Scorer:     scorer,
		Reconciler: reconcile.New(cfg.Pipeline.ReconcileThreshold, scorer, logger),
		Verifier:   verify.New(cfg.Verify),
	}

	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		deps.Secondary = openai.NewClient(openai.FromConfig(cfg.LLM), scorer, logger)
		logger.Info("llm.secondary.enabled", "model", cfg.LLM.Model)
	} else {
		logger.Warn("llm.secondary.disabled", "reason", "LLM_FALLBACK_ENABLED unset or no API key")
	}

	if !opts.NoStore {
		dbCfg := repository.ConfigFrom(cfg.Database)
		if opts.InMemory {
			dbCfg.DSN = "sqlite::memory:"
		}
		store, err := repository.Open(ctx, dbCfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })

		deps.Extractions = repository.NewExtractionRepository(store)
		deps.Verifications = repository.NewVerificationRepository(store)
		a.Export = export.NewService(deps.Extractions, deps.Verifications, logger)
	}

	svc, err := pipeline.New(pipeline.ConfigFrom(cfg), deps, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = svc
	return a, nil
}

func loadTable(dir string) (*fields.Table, error) {
	if dir == "" {
		return fields.LoadDefaultTable()
	}
	packs, err := fields.LoadPacks(os.DirFS(dir), ".")
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("field packs in %s", dir), err)
	}
	return fields.NewTable(packs...)
}

// Health pings the store when there is one.
func (a *App) Health(ctx context.Context) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.HealthCheck(ctx, 2*time.Second)
}

// Close releases engines and the store in reverse order of acquisition.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("app.close.failed", "error", err)
	}
}
