package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/idverify/internal/app"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/ingest"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

func main() {
	var (
		debug   = flag.Bool("debug", false, "include per-stage debug output")
		store   = flag.Bool("store", false, "persist the result to DB_URL")
		noLLM   = flag.Bool("no-llm", false, "never call the secondary extractor")
		maxSize = flag.Int64("max-bytes", ingest.DefaultMaxPageBytes, "largest accepted page file")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: extract [flags] page [page...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// stdout carries the result
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg := common.LoadConfig()
	if *noLLM {
		cfg.LLM.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pages := make([]entity.RawPage, 0, flag.NArg())
	for _, path := range flag.Args() {
		p, err := ingest.LoadPage(path, *maxSize)
		if err != nil {
			logger.Error("failed to read page", "path", path, "error", err)
			os.Exit(1)
		}
		pages = append(pages, p)
	}

	a, err := app.Build(ctx, cfg, app.Options{NoStore: !*store}, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var opts []pipeline.ExtractOption
	if *debug {
		opts = append(opts, pipeline.WithDebug(true))
	}
	resp, err := a.Pipeline.Extract(ctx, entity.NewRawDocument(pages...), opts...)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		logger.Error("failed to write result", "error", err)
	}
}
