package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// CurrencyIDR is the only currency Snap settles.
const CurrencyIDR = "idr"

// snapCreator is the slice of the Snap client used here.
type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// Midtrans creates Snap transactions; the Snap token plays the role of the
// client secret.
type Midtrans struct {
	snap snapCreator
}

// NewMidtrans builds a Midtrans initiator against sandbox or production.
func NewMidtrans(serverKey string, production bool) *Midtrans {
	var c snap.Client
	if production {
		c.New(serverKey, midtrans.Production)
	} else {
		c.New(serverKey, midtrans.Sandbox)
	}
	return &Midtrans{snap: &c}
}

// Provider implements Initiator.
func (m *Midtrans) Provider() string { return ProviderMidtrans }

// CreateIntent creates a Snap transaction keyed by the submission reference.
// Snap settles whole rupiah, so the charge must be in IDR and AmountMinor
// (sen) must be a whole number of rupiah. The Snap SDK has no context
// support; ctx is checked before the call.
func (m *Midtrans) CreateIntent(ctx context.Context, ch Charge) (*Intent, error) {
	if ch.AmountMinor <= 0 {
		return nil, errors.New("payment: amount must be positive")
	}
	if !strings.EqualFold(ch.Currency, CurrencyIDR) {
		return nil, fmt.Errorf("payment: midtrans charges idr only, got %q", ch.Currency)
	}
	if ch.AmountMinor%100 != 0 {
		return nil, fmt.Errorf("payment: %d sen is not a whole rupiah amount", ch.AmountMinor)
	}
	rupiah := ch.AmountMinor / 100
	if ch.Reference == "" {
		return nil, errors.New("payment: reference is required as order id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  ch.Reference,
			GrossAmt: rupiah,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: ch.Customer.Name,
			Email: ch.Customer.Email,
			Phone: ch.Customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    ch.Reference,
			Price: rupiah,
			Qty:   1,
			Name:  truncate(ch.Description, 50),
		}},
		CustomField1: truncate(ch.Description, 40),
	}

	resp, merr := m.snap.CreateTransaction(req)
	if merr != nil {
		return nil, merr
	}
	return &Intent{
		Provider:     ProviderMidtrans,
		ID:           ch.Reference,
		ClientSecret: resp.Token,
		Status:       "pending",
		RedirectURL:  resp.RedirectURL,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
