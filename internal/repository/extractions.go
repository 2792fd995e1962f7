package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// ExtractionRepository stores field values and confidences, never page bytes.
type ExtractionRepository interface {
	Save(ctx context.Context, rec entity.ExtractionRecord) error
	Get(ctx context.Context, id uuid.UUID) (entity.ExtractionRecord, error)
	// List returns records created in [from, to); zero bounds are open.
	List(ctx context.Context, from, to time.Time) ([]entity.ExtractionRecord, error)
}

type extractionRepo struct {
	s *Store
}

func NewExtractionRepository(s *Store) ExtractionRepository {
	return &extractionRepo{s: s}
}

func (r *extractionRepo) Save(ctx context.Context, rec entity.ExtractionRecord) error {
	if rec.ID == uuid.Nil {
		return common.NewAppError("INVALID_RECORD", "extraction id is required", common.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	fields, err := marshalText(nonNilMap(rec.Fields))
	if err != nil {
		return err
	}
	confs, err := marshalText(rec.FieldConfidences)
	if err != nil {
		return err
	}
	warnings, err := marshalText(rec.Warnings)
	if err != nil {
		return err
	}

	q := r.s.rebind(`INSERT INTO extractions
		(id, fields, field_confidences, document_confidence, language, source, engine, pages, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.s.db.ExecContext(ctx, q,
		rec.ID.String(), fields, confs, rec.DocumentConfidence,
		rec.Language, rec.Source, rec.Engine, rec.Pages, warnings, toMillis(rec.CreatedAt),
	)
	if err != nil {
		r.s.logger.Error("repository.extraction.save_failed", "id", rec.ID, "error", err)
		return fmt.Errorf("%w: save extraction: %v", common.ErrDatabase, err)
	}
	return nil
}

const extractionCols = `id, fields, field_confidences, document_confidence, language, source, engine, pages, warnings, created_at`

func (r *extractionRepo) Get(ctx context.Context, id uuid.UUID) (entity.ExtractionRecord, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.rebind(`SELECT `+extractionCols+` FROM extractions WHERE id = ?`), id.String())
	rec, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ExtractionRecord{}, common.NewAppError("EXTRACTION_NOT_FOUND", "extraction "+id.String()+" not found", common.ErrNotFound)
	}
	return rec, err
}

func (r *extractionRepo) List(ctx context.Context, from, to time.Time) ([]entity.ExtractionRecord, error) {
	lo, hi := bounds(from, to)
	rows, err := r.s.db.QueryContext(ctx,
		r.s.rebind(`SELECT `+extractionCols+` FROM extractions WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`),
		lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: list extractions: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list extractions: %v", common.ErrDatabase, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExtraction(sc scanner) (entity.ExtractionRecord, error) {
	var (
		rec                      entity.ExtractionRecord
		id, fields, confs, warns string
		created                  int64
	)
	err := sc.Scan(&id, &fields, &confs, &rec.DocumentConfidence, &rec.Language, &rec.Source, &rec.Engine, &rec.Pages, &warns, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("%w: scan extraction: %v", common.ErrDatabase, err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("%w: bad extraction id %q: %v", common.ErrDatabase, id, err)
	}
	if err := unmarshalText(fields, &rec.Fields); err != nil {
		return rec, err
	}
	if err := unmarshalText(confs, &rec.FieldConfidences); err != nil {
		return rec, err
	}
	if err := unmarshalText(warns, &rec.Warnings); err != nil {
		return rec, err
	}
	rec.CreatedAt = fromMillis(created)
	return rec, nil
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(b), nil
}

func unmarshalText(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: decode column: %v", common.ErrDatabase, err)
	}
	return nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
