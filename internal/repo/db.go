// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and the lazily opened
// process-wide connection handle.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique constraint violation (slot claim,
// reference, idempotency key, or webhook event id).
var ErrDuplicate = errors.New("duplicate")

// ErrReferenceTaken is the ErrDuplicate returned when only the submission
// reference collided. The caller may retry with a fresh reference.
var ErrReferenceTaken = fmt.Errorf("%w: reference", ErrDuplicate)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates every table owned by this package.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Submission{},
		&domain.SlotClaim{},
		&domain.Idempotency{},
		&domain.PaymentEvent{},
	)
}

// Opener produces a ready-to-use database handle.
type Opener func(ctx context.Context) (*gorm.DB, error)

// Lazy holds the process-wide database handle. The handle is opened on the
// first Get and reused for the life of the process; a failed open is not
// memoized, so the next Get retries.
type Lazy struct {
	mu   sync.Mutex
	open Opener
	db   *gorm.DB
}

// NewLazy returns a Lazy that calls open on first use.
func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

// Ready wraps an already open handle; used by tests and the CLI.
func Ready(db *gorm.DB) *Lazy {
	return &Lazy{db: db}
}

// Get returns the memoized handle, opening it if needed.
func (l *Lazy) Get(ctx context.Context) (*gorm.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db != nil {
		return l.db, nil
	}
	if l.open == nil {
		return nil, errors.New("repo: no opener configured")
	}
	db, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.db = db
	return db, nil
}

// isUniqueViolation detects UNIQUE failures across drivers; glebarez/sqlite
// often returns plain-text errors for them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// isReferenceViolation narrows a unique violation to the submissions
// reference column.
func isReferenceViolation(err error) bool {
	if !isUniqueViolation(err) {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "submissions.reference") || strings.Contains(low, "ux_submission_reference")
}
