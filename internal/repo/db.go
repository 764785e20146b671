// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, tracing instrumentation, schema
// migrations, and driver-agnostic detection of unique-constraint violations.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
)

// ErrDuplicate indicates that an insert or update hit a unique index
// (slug already taken, idempotency key already recorded).
var ErrDuplicate = errors.New("duplicate")

// Options tunes the connection pool. Zero values keep the defaults below.
type Options struct {
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// Open connects to PostgreSQL when dsn is a postgres URL/DSN and otherwise
// treats dsn as a SQLite file path.
func Open(dsn string, opts Options) (*gorm.DB, error) {
	if isPostgresDSN(dsn) {
		return OpenPostgres(dsn, opts)
	}
	return OpenSQLite(dsn, opts)
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts Options) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(opts))
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	configurePool(db, opts, 10)
	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL connection through the pgx-backed driver.
func OpenPostgres(dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, err
	}
	configurePool(db, opts, 25)
	if err := instrument(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ShortLink{},
		&domain.ScanEvent{},
		&domain.Idempotency{},
	)
}

// Ping verifies the underlying connection is usable (readiness probe).
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// IsDuplicate reports whether err is a unique-constraint violation, whichever
// driver produced it.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

func gormConfig(opts Options) *gorm.Config {
	lvl := opts.LogLevel
	if lvl == 0 {
		lvl = logger.Warn
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(lvl),
		TranslateError: true,
	}
}

func configurePool(db *gorm.DB, opts Options, def int) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	n := opts.MaxOpenConns
	if n <= 0 {
		n = def
	}
	sqlDB.SetMaxOpenConns(n)
	sqlDB.SetMaxIdleConns(n)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

// instrument attaches OpenTelemetry spans to every GORM operation.
func instrument(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

func isPostgresDSN(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") ||
		strings.HasPrefix(d, "postgresql://") ||
		strings.HasPrefix(d, "host=")
}
