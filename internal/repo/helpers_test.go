package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// newRepoDB opens a unique in-memory database per test and migrates every
// table so schema never leaks across tests.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func visit(ref, email, day, slot string) *domain.Submission {
	d, _ := time.Parse("2006-01-02", day)
	now := time.Now().UTC()
	return &domain.Submission{
		Reference: ref,
		Type:      domain.TypeVisitBooking,
		Status:    domain.StatusScheduled,
		Email:     email,
		VisitDate: &d,
		VisitTime: slot,
		Payload:   datatypes.JSON(fmt.Sprintf(`{"email":%q,"visitDate":%q,"visitTime":%q}`, email, day, slot)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
