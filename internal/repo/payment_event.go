package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// RecordPaymentEvent logs a processed webhook event. A redelivered event
// (same provider and event id) yields ErrDuplicate.
func RecordPaymentEvent(ctx context.Context, db *gorm.DB, provider, eventID, eventType, intentID string) error {
	ev := &domain.PaymentEvent{
		ID:              uuid.NewString(),
		Provider:        provider,
		EventID:         eventID,
		EventType:       eventType,
		PaymentIntentID: intentID,
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
