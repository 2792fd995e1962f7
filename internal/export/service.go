package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/repository"
)

const (
	SheetExtractions   = "Extractions"
	SheetVerifications = "Verifications"
)

// Service is a tiny façade over the result store that produces XLSX bytes.
type Service struct {
	extractions   repository.ExtractionRepository
	verifications repository.VerificationRepository
	logger        *slog.Logger
}

func NewService(extractions repository.ExtractionRepository, verifications repository.VerificationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractions: extractions, verifications: verifications, logger: logger}
}

// Window turns optional inclusive dates into a [from, to) instant range.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> everything.
func Window(from, to *time.Time) (time.Time, time.Time) {
	var lo, hi time.Time
	if from != nil {
		lo = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to != nil {
		hi = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	if from != nil && to == nil {
		today := time.Now().UTC()
		hi = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	return lo, hi
}

// ExportXLSX returns a workbook with one sheet of extractions and one of
// verifications created in the window.
func (s *Service) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	lo, hi := Window(from, to)

	exts, err := s.extractions.List(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	var vers []entity.VerificationRecord
	if s.verifications != nil {
		if vers, err = s.verifications.List(ctx, lo, hi); err != nil {
			return nil, fmt.Errorf("query verifications: %w", err)
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetExtractions); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetVerifications); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	if err := writeExtractions(f, exts); err != nil {
		return nil, err
	}
	if err := writeVerifications(f, vers); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"extractions", len(exts),
		"verifications", len(vers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeExtractions(f *excelize.File, recs []entity.ExtractionRecord) error {
	keys := constants.AllFields()
	headers := []any{"Extraction ID", "Created At", "Language", "Source", "Engine", "Pages", "Document Confidence"}
	for _, k := range keys {
		headers = append(headers, string(k))
	}
	headers = append(headers, "Warnings")
	if err := writeRow(f, SheetExtractions, 1, headers); err != nil {
		return err
	}

	for i, r := range recs {
		vals := []any{
			r.ID.String(),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Language,
			r.Source,
			r.Engine,
			r.Pages,
			round(r.DocumentConfidence),
		}
		for _, k := range keys {
			vals = append(vals, r.Fields[string(k)])
		}
		vals = append(vals, strings.Join(r.Warnings, ", "))
		if err := writeRow(f, SheetExtractions, i+2, vals); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetExtractions, "A", "A", 38) // id
	_ = f.SetColWidth(SheetExtractions, "B", "B", 22) // created
	return nil
}

func writeVerifications(f *excelize.File, recs []entity.VerificationRecord) error {
	headers := []any{"Verification ID", "Extraction ID", "Created At", "Overall Score", "Passed", "Invalid", "Mismatched Fields", "Reason"}
	if err := writeRow(f, SheetVerifications, 1, headers); err != nil {
		return err
	}
	for i, r := range recs {
		extractionID := ""
		if r.ExtractionID != nil {
			extractionID = r.ExtractionID.String()
		}
		mismatched := make([]string, 0, len(r.Report.Mismatches))
		for _, m := range r.Report.Mismatches {
			mismatched = append(mismatched, fmt.Sprintf("%s (%.2f)", m.Field, m.Score))
		}
		vals := []any{
			r.ID.String(),
			extractionID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			round(r.Report.OverallScore),
			r.Report.Passed,
			r.Report.Invalid,
			truncate(strings.Join(mismatched, ", "), 240),
			r.Report.Reason,
		}
		if err := writeRow(f, SheetVerifications, i+2, vals); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetVerifications, "A", "B", 38)
	_ = f.SetColWidth(SheetVerifications, "G", "G", 48) // mismatches
	return nil
}

func round(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
