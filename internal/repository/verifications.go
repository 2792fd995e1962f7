package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

type VerificationRepository interface {
	Save(ctx context.Context, rec entity.VerificationRecord) error
	List(ctx context.Context, from, to time.Time) ([]entity.VerificationRecord, error)
}

type verificationRepo struct {
	s *Store
}

func NewVerificationRepository(s *Store) VerificationRepository {
	return &verificationRepo{s: s}
}

func (r *verificationRepo) Save(ctx context.Context, rec entity.VerificationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	report, err := marshalText(rec.Report)
	if err != nil {
		return err
	}
	var extractionID sql.NullString
	if rec.ExtractionID != nil {
		extractionID = sql.NullString{String: rec.ExtractionID.String(), Valid: true}
	}

	q := r.s.rebind(`INSERT INTO verifications (id, extraction_id, report, overall_score, passed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.s.db.ExecContext(ctx, q,
		rec.ID.String(), extractionID, report, rec.Report.OverallScore, rec.Report.Passed, toMillis(rec.CreatedAt),
	); err != nil {
		r.s.logger.Error("repository.verification.save_failed", "id", rec.ID, "error", err)
		return fmt.Errorf("%w: save verification: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *verificationRepo) List(ctx context.Context, from, to time.Time) ([]entity.VerificationRecord, error) {
	lo, hi := bounds(from, to)
	rows, err := r.s.db.QueryContext(ctx,
		r.s.rebind(`SELECT id, extraction_id, report, created_at FROM verifications
			WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`),
		lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: list verifications: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.VerificationRecord
	for rows.Next() {
		var (
			rec          entity.VerificationRecord
			id, report   string
			extractionID sql.NullString
			created      int64
		)
		if err := rows.Scan(&id, &extractionID, &report, &created); err != nil {
			return nil, fmt.Errorf("%w: scan verification: %v", common.ErrDatabase, err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: bad verification id %q: %v", common.ErrDatabase, id, err)
		}
		if extractionID.Valid {
			eid, err := uuid.Parse(extractionID.String)
			if err != nil {
				return nil, fmt.Errorf("%w: bad extraction id %q: %v", common.ErrDatabase, extractionID.String, err)
			}
			rec.ExtractionID = &eid
		}
		if err := unmarshalText(report, &rec.Report); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list verifications: %v", common.ErrDatabase, err)
	}
	return out, nil
}
