package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/nursery-backend/internal/forms"
	"github.com/tbourn/nursery-backend/internal/notify"
	"github.com/tbourn/nursery-backend/internal/payment"
	"github.com/tbourn/nursery-backend/internal/pdfdoc"
	"github.com/tbourn/nursery-backend/internal/repo"
)

var london, _ = time.LoadLocation("Europe/London")

// Sunday 1 June 2025, mid-morning in London.
func fixedNow() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, london) }

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakePayments records charges and returns a fixed intent.
type fakePayments struct {
	mu      sync.Mutex
	charges []payment.Charge
	err     error
}

func (f *fakePayments) Provider() string { return "fake" }

func (f *fakePayments) CreateIntent(_ context.Context, ch payment.Charge) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.charges = append(f.charges, ch)
	n := len(f.charges)
	return &payment.Intent{
		Provider:     "fake",
		ID:           fmt.Sprintf("pi_%d", n),
		ClientSecret: fmt.Sprintf("pi_%d_secret", n),
		Status:       "requires_payment_method",
	}, nil
}

// fakeNotifier records notifications; userErr fails the user send.
type fakeNotifier struct {
	mu      sync.Mutex
	awaited []notify.Notification
	async   []notify.Notification
	userErr error
}

func (f *fakeNotifier) Notify(_ context.Context, n notify.Notification) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaited = append(f.awaited, n)
	return notify.Outcome{UserErr: f.userErr}
}

func (f *fakeNotifier) NotifyAsync(_ context.Context, n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.async = append(f.async, n)
}

func (f *fakeNotifier) Wait(context.Context) error { return nil }

type fakeRenderer struct {
	docs []pdfdoc.Document
	err  error
}

func (f *fakeRenderer) Render(doc pdfdoc.Document) ([]byte, error) {
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

type fixture struct {
	db       *gorm.DB
	pipe     *Pipeline
	pay      *fakePayments
	notifier *fakeNotifier
	renderer *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newServiceDB(t)
	f := &fixture{
		db:       db,
		pay:      &fakePayments{},
		notifier: &fakeNotifier{},
		renderer: &fakeRenderer{},
	}
	f.pipe = &Pipeline{
		Store:          repo.Ready(db),
		Validator:      forms.New(fixedNow, london),
		Payments:       f.pay,
		Notifier:       f.notifier,
		Renderer:       f.renderer,
		Currency:       "gbp",
		IdempotencyTTL: time.Hour,
		Location:       london,
		Now:            fixedNow,
	}
	return f
}

// failingStore never opens.
type failingStore struct{}

func (failingStore) Get(context.Context) (*gorm.DB, error) {
	return nil, errors.New("database unreachable")
}

func visitInput(email, day, slot string) map[string]any {
	return map[string]any{
		"parentName": "Ann Smith",
		"email":      email,
		"phone":      "07123 456 789",
		"childName":  "Bo Smith",
		"visitDate":  day,
		"visitTime":  slot,
	}
}

func clubInput(email string, dates ...any) map[string]any {
	return map[string]any{
		"parentName":    "Ann Smith",
		"email":         email,
		"phone":         "+14155552671",
		"childName":     "Bo Smith",
		"childAge":      "6",
		"clubTitle":     "Breakfast Club",
		"selectedDates": dates,
		"clubPrice":     float64(8),
		"totalAmount":   float64(8 * len(dates)),
	}
}

func depositInput(kind string) map[string]any {
	return map[string]any{
		"parentName":  "Ann Smith",
		"email":       "ann@example.com",
		"phone":       "07123456789",
		"childName":   "Bo Smith",
		"depositType": kind,
	}
}

func medicalInput(allergies string) map[string]any {
	in := map[string]any{
		"parentName":            "Ann Smith",
		"email":                 "ann@example.com",
		"phone":                 "07123456789",
		"childName":             "Bo Smith",
		"childDob":              "2022-03-04",
		"gpName":                "Dr Jones",
		"gpSurgery":             "High Street Surgery",
		"gpPhone":               "01234 567890",
		"hasAllergies":          allergies,
		"onLongTermMedication":  "No",
		"immunisationsUpToDate": "Yes",
		"declaration":           true,
	}
	if allergies == "Yes" {
		in["allergiesDetails"] = "Peanuts"
	}
	return in
}
