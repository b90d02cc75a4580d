package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// intentCreator is the slice of the Stripe client used here.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe creates PaymentIntents through the Stripe API.
type Stripe struct {
	intents intentCreator
}

// NewStripe builds a Stripe initiator for the given secret key.
func NewStripe(secretKey string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents}
}

// Provider implements Initiator.
func (s *Stripe) Provider() string { return ProviderStripe }

// CreateIntent creates a PaymentIntent with automatic payment methods.
func (s *Stripe) CreateIntent(ctx context.Context, ch Charge) (*Intent, error) {
	if ch.AmountMinor <= 0 {
		return nil, errors.New("payment: amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(ch.AmountMinor),
		Currency:    stripe.String(strings.ToLower(ch.Currency)),
		Description: stripe.String(ch.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if ch.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(ch.ReceiptEmail)
	}
	params.Context = ctx
	for k, v := range ch.Metadata {
		params.AddMetadata(k, v)
	}
	if ch.Reference != "" {
		params.AddMetadata("reference", ch.Reference)
	}
	if ch.IdempotencyKey != "" {
		params.SetIdempotencyKey(ch.IdempotencyKey)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{
		Provider:     ProviderStripe,
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}
