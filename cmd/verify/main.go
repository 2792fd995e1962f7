package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/idverify/internal/app"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		submittedPath = flag.String("submitted", "", "JSON object of submitted fields (file path, - for stdin)")
		extractedPath = flag.String("extracted", "", "JSON object of extracted fields, or an extract response")
		extractionID  = flag.String("extraction-id", "", "verify against a stored extraction instead of -extracted")
		failExit      = flag.Bool("fail-exit", false, "exit with status 3 when verification does not pass")
	)
	flag.Parse()

	if *submittedPath == "" || (*extractedPath == "" && *extractionID == "") {
		printError("Error: -submitted and one of -extracted or -extraction-id are required\n")
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	submitted, err := readFields(*submittedPath)
	if err != nil {
		printError("Error: reading submitted fields: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cfg := common.LoadConfig()
	cfg.LLM.Enabled = false

	var report entity.VerificationReport
	if *extractionID != "" {
		id, err := uuid.Parse(*extractionID)
		if err != nil {
			printError("Error: -extraction-id must be a UUID\n")
			os.Exit(2)
		}
		a, err := app.Build(ctx, cfg, app.Options{}, logger)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()
		report, err = a.Pipeline.VerifyExtraction(ctx, id, submitted)
		if err != nil {
			printError("Error: %v\n", err)
			a.Close()
			os.Exit(1)
		}
	} else {
		extracted, err := readFields(*extractedPath)
		if err != nil {
			printError("Error: reading extracted fields: %v\n", err)
			os.Exit(1)
		}
		a, err := app.Build(ctx, cfg, app.Options{NoStore: true}, logger)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()
		report = a.Pipeline.Verify(ctx, submitted, extracted)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		printError("Error: writing report: %v\n", err)
		os.Exit(1)
	}
	if *failExit && !report.Passed {
		os.Exit(3)
	}
}

// readFields accepts a flat object of strings or an extract response, whose
// "fields" member is used.
func readFields(path string) (map[string]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if inner, ok := raw["fields"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(inner, &fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		raw = fields
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// numbers and booleans are kept in their JSON spelling
			s = string(v)
		}
		out[k] = s
	}
	return out, nil
}
