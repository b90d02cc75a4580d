// Package payment creates third-party payment intents for monetary flows and
// parses provider webhooks. Amounts come from the fixed fee table in this
// package; providers sit behind the Initiator interface so the pipeline and
// its tests do not depend on a concrete SDK.
package payment

import (
	"context"
	"errors"
)

// Provider names.
const (
	ProviderStripe   = "stripe"
	ProviderMidtrans = "midtrans"
	ProviderNone     = "none"
)

// ErrUnavailable is returned when a monetary flow runs without a configured
// provider.
var ErrUnavailable = errors.New("payment provider not configured")

// Charge describes one payment intent to create.
type Charge struct {
	AmountMinor  int64
	Currency     string
	ReceiptEmail string
	Description  string
	Reference    string
	Customer     Customer
	Metadata     map[string]string
	// IdempotencyKey is forwarded to the provider only when non-empty.
	IdempotencyKey string
}

// Customer carries the payer's contact details.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Intent is the provider's payment object as the caller needs it.
type Intent struct {
	Provider     string
	ID           string
	ClientSecret string
	Status       string
	RedirectURL  string
}

// Initiator creates payment intents. Implementations perform no retries.
type Initiator interface {
	Provider() string
	CreateIntent(ctx context.Context, ch Charge) (*Intent, error)
}

// Disabled is the Initiator used when no provider is configured.
type Disabled struct{}

// Provider implements Initiator.
func (Disabled) Provider() string { return ProviderNone }

// CreateIntent always fails with ErrUnavailable.
func (Disabled) CreateIntent(context.Context, Charge) (*Intent, error) {
	return nil, ErrUnavailable
}

// Available reports whether i can create intents at all.
func Available(i Initiator) bool {
	return i != nil && i.Provider() != ProviderNone
}

// Options selects and configures a provider.
type Options struct {
	Provider           string
	StripeSecretKey    string
	MidtransServerKey  string
	MidtransProduction bool
}

// New returns the Initiator for opts; a provider without credentials
// yields Disabled.
func New(opts Options) Initiator {
	switch opts.Provider {
	case ProviderStripe:
		if opts.StripeSecretKey != "" {
			return NewStripe(opts.StripeSecretKey)
		}
	case ProviderMidtrans:
		if opts.MidtransServerKey != "" {
			return NewMidtrans(opts.MidtransServerKey, opts.MidtransProduction)
		}
	}
	return Disabled{}
}
