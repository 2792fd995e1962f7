package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/idverify/internal/entity"
)

type fakeExtractions struct {
	recs     []entity.ExtractionRecord
	from, to time.Time
	err      error
}

func (f *fakeExtractions) Save(context.Context, entity.ExtractionRecord) error { return nil }

func (f *fakeExtractions) Get(context.Context, uuid.UUID) (entity.ExtractionRecord, error) {
	return entity.ExtractionRecord{}, nil
}

func (f *fakeExtractions) List(_ context.Context, from, to time.Time) ([]entity.ExtractionRecord, error) {
	f.from, f.to = from, to
	return f.recs, f.err
}

type fakeVerifications struct {
	recs []entity.VerificationRecord
}

func (f *fakeVerifications) Save(context.Context, entity.VerificationRecord) error { return nil }

func (f *fakeVerifications) List(context.Context, time.Time, time.Time) ([]entity.VerificationRecord, error) {
	return f.recs, nil
}

func TestExportXLSX(t *testing.T) {
	eid := uuid.New()
	created := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	exts := &fakeExtractions{recs: []entity.ExtractionRecord{{
		ID:                 eid,
		Fields:             map[string]string{"name": "Ravi Kumar", "city": "Pune"},
		DocumentConfidence: 0.86666,
		Language:           "en",
		Source:             "pattern",
		Engine:             "tesseract",
		Pages:              2,
		Warnings:           []string{"conditioning_degraded"},
		CreatedAt:          created,
	}}}
	vers := &fakeVerifications{recs: []entity.VerificationRecord{{
		ID:           uuid.New(),
		ExtractionID: &eid,
		Report: entity.VerificationReport{
			OverallScore: 0.5,
			Mismatches:   []entity.Mismatch{{Field: "age", Score: 0}},
		},
		CreatedAt: created,
	}}}

	b, err := NewService(exts, vers, nil).ExportXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetExtractions, SheetVerifications}, f.GetSheetList())

	rows, err := f.GetRows(SheetExtractions)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Extraction ID", rows[0][0])
	assert.Equal(t, "name", rows[0][7])
	assert.Equal(t, eid.String(), rows[1][0])
	assert.Equal(t, "2026-05-04T03:02:01Z", rows[1][1])
	assert.Equal(t, "0.867", rows[1][6])
	assert.Equal(t, "Ravi Kumar", rows[1][7])
	assert.Equal(t, "conditioning_degraded", rows[1][len(rows[1])-1])

	vrows, err := f.GetRows(SheetVerifications)
	require.NoError(t, err)
	require.Len(t, vrows, 2)
	assert.Equal(t, eid.String(), vrows[1][1])
	assert.Equal(t, "FALSE", vrows[1][4])
	assert.Equal(t, "age (0.00)", vrows[1][6])
}

func TestExportXLSX_QueryError(t *testing.T) {
	exts := &fakeExtractions{err: errors.New("db down")}
	_, err := NewService(exts, nil, nil).ExportXLSX(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	from := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	lo, hi := Window(&from, &to)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), hi)

	lo, hi = Window(nil, nil)
	assert.True(t, lo.IsZero())
	assert.True(t, hi.IsZero())

	_, hi = Window(&from, nil)
	assert.True(t, hi.After(time.Now()))
}
