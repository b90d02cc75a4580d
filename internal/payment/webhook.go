package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrSignature is returned for payloads that fail signature verification.
var ErrSignature = errors.New("invalid webhook signature")

// Event is a verified provider event reduced to what reconciliation needs.
// Handled is false for event types that do not affect submissions.
type Event struct {
	Provider string
	ID       string
	Type     string
	IntentID string
	// Status is the provider's payment status string.
	Status  string
	Handled bool
}

// StripeWebhook verifies and decodes Stripe webhook deliveries.
type StripeWebhook struct {
	Secret string
}

// Parse verifies the Stripe-Signature header and extracts the payment
// intent from payment_intent.* events.
func (w StripeWebhook) Parse(payload []byte, signature string) (*Event, error) {
	if w.Secret == "" {
		return nil, ErrUnavailable
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, w.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := &Event{Provider: ProviderStripe, ID: ev.ID, Type: string(ev.Type)}
	switch ev.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
		var pi stripe.PaymentIntent
		if ev.Data == nil {
			return nil, errors.New("payment: event without data")
		}
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("payment: decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Status = string(pi.Status)
		out.Handled = true
	}
	return out, nil
}
