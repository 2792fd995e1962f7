package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{DSN: "sqlite::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestDialectOf(t *testing.T) {
	assert.Equal(t, Postgres, DialectOf("postgres://u:p@localhost/db"))
	assert.Equal(t, Postgres, DialectOf("postgresql://localhost/db"))
	assert.Equal(t, SQLite, DialectOf("sqlite:idverify.db"))
	assert.Equal(t, SQLite, DialectOf("/var/lib/idverify.db"))
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y < $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y < ?"))
	lite := &Store{dialect: SQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.HealthCheck(context.Background(), time.Second))
}

func TestExtractions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractionRepository(openMemory(t))

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := entity.ExtractionRecord{
		ID:                 uuid.New(),
		Fields:             map[string]string{"name": "Ravi Kumar", "age": "34"},
		FieldConfidences:   map[string]float64{"name": 0.9, "age": 0.8},
		DocumentConfidence: 0.86,
		Language:           "en",
		Source:             "pattern",
		Engine:             "tesseract",
		Pages:              1,
		Warnings:           []string{"conditioning_degraded"},
		CreatedAt:          created,
	}
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = repo.Save(ctx, rec)
	assert.ErrorIs(t, err, common.ErrDatabase, "duplicate id")
}

func TestExtractions_ListWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractionRepository(openMemory(t))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, entity.ExtractionRecord{
			ID:        uuid.New(),
			Language:  "en",
			Source:    "pattern",
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	all, err := repo.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, map[string]string{}, all[0].Fields)
	assert.True(t, all[0].CreatedAt.Before(all[1].CreatedAt))

	window, err := repo.List(ctx, base.Add(time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, base.Add(24*time.Hour), window[0].CreatedAt)
}

func TestVerifications_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository(openMemory(t))

	eid := uuid.New()
	report := entity.VerificationReport{
		Matches:      map[string]float64{"name": 1, "age": 0.5},
		Mismatches:   []entity.Mismatch{{Field: "age", Submitted: "34", Extracted: "24", Score: 0.5}},
		OverallScore: 0.75,
	}
	require.NoError(t, repo.Save(ctx, entity.VerificationRecord{ExtractionID: &eid, Report: report}))
	require.NoError(t, repo.Save(ctx, entity.VerificationRecord{Report: entity.VerificationReport{Invalid: true, Reason: "empty"}}))

	got, err := repo.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	var linked, bare int
	for _, rec := range got {
		assert.NotEqual(t, uuid.Nil, rec.ID)
		if rec.ExtractionID != nil {
			linked++
			assert.Equal(t, eid, *rec.ExtractionID)
			assert.Equal(t, report, rec.Report)
		} else {
			bare++
			assert.True(t, rec.Report.Invalid)
		}
	}
	assert.Equal(t, 1, linked)
	assert.Equal(t, 1, bare)
}
