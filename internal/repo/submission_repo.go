// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Submission
// model and its slot claims.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Lookups that match nothing return ErrNotFound.
//   - Unique violations (reference, slot claim) return ErrDuplicate; a
//     reference collision is the narrower ErrReferenceTaken.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// Filter selects submissions by equality on promoted columns plus an
// optional calendar-day range on visit_date. Zero values are ignored.
type Filter struct {
	Type      domain.SubmissionType
	Email     string
	VisitTime string
	Status    string
	// Day matches visit_date in [Day 00:00 UTC, next day 00:00 UTC).
	Day *time.Time
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Email != "" {
		q = q.Where("email = ?", strings.ToLower(f.Email))
	}
	if f.VisitTime != "" {
		q = q.Where("visit_time = ?", f.VisitTime)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Day != nil {
		start := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("visit_date >= ? AND visit_date < ?", start, start.AddDate(0, 0, 1))
	}
	return q
}

// InsertSubmission stores sub together with its slot claims in one
// transaction. The ID is assigned here when empty. A claim already held by
// another submission of the same type yields ErrDuplicate and nothing is
// written. A reference already in use yields ErrReferenceTaken.
func InsertSubmission(ctx context.Context, db *gorm.DB, sub *domain.Submission, claimKeys []string) (*domain.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if strings.TrimSpace(sub.UserAgent) == "" {
		sub.UserAgent = "unknown"
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		for _, k := range claimKeys {
			c := &domain.SlotClaim{
				ID:           uuid.NewString(),
				Type:         sub.Type,
				Key:          k,
				SubmissionID: sub.ID,
				CreatedAt:    sub.CreatedAt,
			}
			if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isReferenceViolation(err) {
			return nil, ErrReferenceTaken
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return sub, nil
}

// ClaimedKeys returns the subset of keys already claimed within typ.
func ClaimedKeys(ctx context.Context, db *gorm.DB, typ domain.SubmissionType, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var taken []string
	err := db.WithContext(ctx).
		Model(&domain.SlotClaim{}).
		Where("type = ? AND key IN ?", typ, keys).
		Pluck("key", &taken).Error
	return taken, err
}

// FindSubmission returns the oldest submission matching f, or ErrNotFound.
func FindSubmission(ctx context.Context, db *gorm.DB, f Filter) (*domain.Submission, error) {
	var s domain.Submission
	err := f.apply(db.WithContext(ctx)).Order("created_at ASC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubmission fetches a submission by id.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	return firstWhere(ctx, db, "id = ?", id)
}

// FindByReference fetches a submission by its public reference.
func FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Submission, error) {
	return firstWhere(ctx, db, "reference = ?", strings.ToUpper(strings.TrimSpace(reference)))
}

// FindByPaymentIntent fetches the submission linked to a payment intent.
func FindByPaymentIntent(ctx context.Context, db *gorm.DB, intentID string) (*domain.Submission, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, ErrNotFound
	}
	return firstWhere(ctx, db, "payment_intent_id = ?", intentID)
}

func firstWhere(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.Submission, error) {
	var s domain.Submission
	err := db.WithContext(ctx).Where(cond, arg).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubmissions returns the newest submissions matching f, capped at limit
// (default 50, max 500).
func ListSubmissions(ctx context.Context, db *gorm.DB, f Filter, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var out []domain.Submission
	err := f.apply(db.WithContext(ctx)).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PaymentLink is the payment linkage copied from the provider's object.
type PaymentLink struct {
	Provider    string
	IntentID    string
	Status      string
	AmountMinor int64
	Currency    string
}

// AttachPayment stores the payment linkage on a submission.
func AttachPayment(ctx context.Context, db *gorm.DB, id string, p PaymentLink) error {
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_provider":  p.Provider,
			"payment_intent_id": p.IntentID,
			"payment_status":    p.Status,
			"amount_minor":      p.AmountMinor,
			"currency":          p.Currency,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus records the provider's latest payment status and the
// lifecycle label for the submission linked to intentID.
func UpdatePaymentStatus(ctx context.Context, db *gorm.DB, intentID, paymentStatus, status string) (*domain.Submission, error) {
	sub, err := FindByPaymentIntent(ctx, db, intentID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"payment_status": paymentStatus,
			"status":         status,
			"updated_at":     now,
		}).Error; err != nil {
		return nil, err
	}
	sub.PaymentStatus, sub.Status, sub.UpdatedAt = paymentStatus, status, now
	return sub, nil
}
