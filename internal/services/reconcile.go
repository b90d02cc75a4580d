// Package services – Reconciler
//
// This file applies verified payment webhook events to stored submissions.
// Each event is recorded in payment_events (unique per provider and event
// id) in the same transaction as the status change, so a redelivered event
// is acknowledged without being applied twice.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/payment"
	"github.com/tbourn/nursery-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WebhookParser verifies and decodes a provider delivery.
type WebhookParser interface {
	Parse(payload []byte, signature string) (*payment.Event, error)
}

// Reconciler moves submissions to their final payment status.
type Reconciler struct {
	Store   Store
	Webhook WebhookParser
}

// Reconciliation reports what an event did.
type Reconciliation struct {
	EventID    string
	Applied    bool
	Duplicate  bool
	Submission *domain.Submission
}

// statusFor maps a payment_intent event type to the submission status;
// ok is false for events that leave the status unchanged.
func statusFor(eventType string) (string, bool) {
	switch eventType {
	case "payment_intent.succeeded":
		return domain.StatusPaid, true
	case "payment_intent.payment_failed":
		return domain.StatusPaymentFailed, true
	case "payment_intent.canceled":
		return domain.StatusPaymentCanceled, true
	case "payment_intent.processing":
		return domain.StatusPendingPayment, true
	}
	return "", false
}

// HandleWebhook verifies payload and applies the event it carries.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Reconciliation, error) {
	ev, err := r.Webhook.Parse(payload, signature)
	switch {
	case errors.Is(err, payment.ErrUnavailable):
		return nil, ErrPaymentUnavailable
	case errors.Is(err, payment.ErrSignature):
		return nil, ErrWebhookSignature
	case err != nil:
		return nil, err
	}
	return r.Apply(ctx, ev)
}

// Apply records ev and updates the linked submission. Unhandled event types
// and unknown intents are acknowledged without changes.
func (r *Reconciler) Apply(ctx context.Context, ev *payment.Event) (*Reconciliation, error) {
	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
		),
	)
	defer span.End()

	out := &Reconciliation{EventID: ev.ID}
	status, ok := statusFor(ev.Type)
	if !ev.Handled || !ok {
		paymentEventsTotal.WithLabelValues(ev.Type, outcomeIgnored).Inc()
		return out, nil
	}

	db, err := r.Store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.RecordPaymentEvent(ctx, tx, ev.Provider, ev.ID, ev.Type, ev.IntentID); err != nil {
			return err
		}
		sub, err := repo.UpdatePaymentStatus(ctx, tx, ev.IntentID, ev.Status, status)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out.Submission = sub
		out.Applied = true
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		out.Duplicate = true
		paymentEventsTotal.WithLabelValues(ev.Type, outcomeReplayed).Inc()
		return out, nil
	}
	if err != nil {
		paymentEventsTotal.WithLabelValues(ev.Type, outcomeError).Inc()
		return nil, fmt.Errorf("apply %s: %w", ev.ID, err)
	}

	lg := log.With().Str("event_id", ev.ID).Str("intent_id", ev.IntentID).Logger()
	if !out.Applied {
		lg.Warn().Msg("payment event for unknown intent")
		paymentEventsTotal.WithLabelValues(ev.Type, outcomeIgnored).Inc()
		return out, nil
	}
	lg.Info().Str("reference", out.Submission.Reference).Str("status", status).Msg("payment status updated")
	paymentEventsTotal.WithLabelValues(ev.Type, outcomeApplied).Inc()
	return out, nil
}
