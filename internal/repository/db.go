package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/idverify/internal/common"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom maps application database settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config(c)
}

// Store is the result store. Postgres goes through a pgx pool wrapped as
// *sql.DB so both backends share one query path.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	logger  *slog.Logger
}

// DialectOf picks the backend from the DSN scheme.
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to the store named by cfg.DSN and creates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		s   *Store
		err error
	)
	switch DialectOf(cfg.DSN) {
	case Postgres:
		s, err = openPostgres(ctx, cfg, logger)
	default:
		s, err = openSQLite(cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "dialect", Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, common.NewAppError("DB_CONFIG", "invalid postgres DSN", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "idverify"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	logger.Info("successfully connected to database")
	return &Store{db: stdlib.OpenDBFromPool(pool), pool: pool, dialect: Postgres, logger: logger}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*Store, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(cfg.DSN, "sqlite://"), "sqlite:")
	if path == "" {
		path = ":memory:"
	}
	logger.Info("opening database", "dialect", SQLite, "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	// one writer; an in-memory database also lives only as long as its connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return &Store{db: db, dialect: SQLite, logger: logger}, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database connections gracefully
func (s *Store) Close() {
	s.logger.Info("closing database connections")
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	s.logger.Debug("pinging database")
	var err error
	if s.pool != nil {
		err = s.pool.Ping(ctx)
	} else {
		err = s.db.PingContext(ctx)
	}
	if err != nil {
		return fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("database ping successful")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS extractions (
		id                  TEXT PRIMARY KEY,
		fields              TEXT NOT NULL,
		field_confidences   TEXT NOT NULL,
		document_confidence DOUBLE PRECISION NOT NULL,
		language            TEXT NOT NULL,
		source              TEXT NOT NULL,
		engine              TEXT NOT NULL,
		pages               INTEGER NOT NULL,
		warnings            TEXT NOT NULL,
		created_at          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS extractions_created_at_idx ON extractions (created_at)`,
	`CREATE TABLE IF NOT EXISTS verifications (
		id            TEXT PRIMARY KEY,
		extraction_id TEXT,
		report        TEXT NOT NULL,
		overall_score DOUBLE PRECISION NOT NULL,
		passed        BOOLEAN NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS verifications_created_at_idx ON verifications (created_at)`,
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// bounds turns an optional [from, to) window into millisecond limits.
func bounds(from, to time.Time) (int64, int64) {
	lo, hi := int64(0), int64(1<<62)
	if !from.IsZero() {
		lo = toMillis(from)
	}
	if !to.IsZero() {
		hi = toMillis(to)
	}
	return lo, hi
}
