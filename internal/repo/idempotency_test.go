package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/nursery-backend/internal/domain"
)

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t)
	rec, err := GetIdempotency(context.Background(), db, "/api/bookings", "   ", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t)
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:           "expired",
		Route:        "/api/bookings",
		Key:          "k1",
		SubmissionID: "s1",
		Status:       201,
		CreatedAt:    now.Add(-2 * time.Hour),
		ExpiresAt:    now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetIdempotency(context.Background(), db, "/api/bookings", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "/api/bookings", "missing", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_Success_Duplicate_AndExpiredReplaced(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "/api/bookings", "k1", "s1", 201, time.Hour)
	if err != nil || rec.SubmissionID != "s1" {
		t.Fatalf("create: rec=%+v err=%v", rec, err)
	}
	got, err := GetIdempotency(ctx, db, "/api/bookings", "k1", time.Now().UTC())
	if err != nil || got.ID != rec.ID {
		t.Fatalf("get: got=%+v err=%v", got, err)
	}

	if _, err := CreateIdempotency(ctx, db, "/api/bookings", "k1", "s2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Force expiry, then the key can be reused.
	if err := db.Model(&domain.Idempotency{}).Where("id = ?", rec.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "/api/bookings", "k1", "s3", 201, time.Hour); err != nil {
		t.Fatalf("expired key should be replaceable: %v", err)
	}
}

func TestRecordPaymentEvent_Dedupes(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	if err := RecordPaymentEvent(ctx, db, "stripe", "evt_1", "payment_intent.succeeded", "pi_1"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := RecordPaymentEvent(ctx, db, "stripe", "evt_1", "payment_intent.succeeded", "pi_1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := RecordPaymentEvent(ctx, db, "midtrans", "evt_1", "settlement", "ord_1"); err != nil {
		t.Fatalf("same id from another provider should be accepted: %v", err)
	}
}
