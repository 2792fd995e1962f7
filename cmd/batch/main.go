package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/idverify/internal/app"
	"github.com/joseph-ayodele/idverify/internal/async"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type tally struct {
	mu        sync.Mutex
	processed int
	failures  int
	degraded  int
}

func (t *tally) record(o async.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o.Err != nil {
		t.failures++
		return
	}
	t.processed++
	if len(o.Response.Warnings) > 0 {
		t.degraded++
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem      = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir        = flag.String("dir", "", "directory of page files (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		fromStr    = flag.String("from", "", "export from date YYYY-MM-DD")
		toStr      = flag.String("to", "", "export to date YYYY-MM-DD")
		groupByDir = flag.Bool("group-by-dir", false, "treat each subdirectory as one document")
		watch      = flag.Bool("watch", false, "keep running and process files as they appear")
		debug      = flag.Bool("debug", false, "run extractions with debug output")
	)
	flag.Parse()

	// Validate required flags
	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	// If output file not specified, use parent directory with default filename
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "idverify.xlsx")
	}

	from, err := parseDate(*fromStr)
	if err != nil {
		printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}
	to, err := parseDate(*toStr)
	if err != nil {
		printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem}, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var t tally
	queue := async.NewProcessorQueue(a.Pipeline, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
		async.WithOnDone(t.record),
	)

	enqueue := func(doc ingest.Document) {
		raw, err := ingest.Load(doc, 0)
		if err != nil {
			logger.Error("failed to load document", "label", doc.Label, "error", err)
			t.record(async.Outcome{Err: err})
			return
		}
		job := async.Job{Document: raw, Label: doc.Label, Debug: *debug}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Error("failed to enqueue document", "label", doc.Label, "error", err)
		}
	}

	if *watch {
		docs, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Root:        *dir,
			GroupByDir:  *groupByDir,
			InitialScan: true,
		}, logger)
		if err != nil {
			logger.Error("failed to watch directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("watching for documents", "dir", *dir)
		for docs != nil || errs != nil {
			select {
			case doc, ok := <-docs:
				if !ok {
					docs = nil
					continue
				}
				enqueue(doc)
			case _, ok := <-errs:
				if !ok {
					errs = nil
				}
			}
		}
	} else {
		docs, stats, failed, err := ingest.ScanDirectory(ctx, *dir, ingest.ScanOptions{SkipHidden: true, GroupByDir: *groupByDir})
		if err != nil {
			logger.Error("failed to scan directory", "error", err)
			os.Exit(1)
		}
		for _, f := range failed {
			logger.Warn("unreadable entry", "path", f.Path, "error", f.Err)
		}
		logger.Info("scan complete",
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"documents", stats.Documents,
			"failed", stats.Failed)
		for _, doc := range docs {
			enqueue(doc)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ProcessTimeout+30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	// Export to XLSX
	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := a.Export.ExportXLSX(context.Background(), from, to)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"documents_processed", t.processed,
		"with_warnings", t.degraded,
		"failures", t.failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents processed: %d\n", t.processed)
	fmt.Printf("- With warnings: %d\n", t.degraded)
	fmt.Printf("- Failures: %d\n", t.failures)
	fmt.Printf("- Output: %s\n", *out)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
