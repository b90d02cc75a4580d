package handlers

import (
	"context"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/services"
)

// Submitter runs one form submission; services.Pipeline implements it.
type Submitter interface {
	Submit(ctx context.Context, typ domain.SubmissionType, raw map[string]any, meta services.Meta) (*services.Result, error)
}

// WebhookHandler applies a signed payment provider delivery;
// services.Reconciler implements it.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*services.Reconciliation, error)
}

// PaymentsConfig is the public part of the payment configuration handed to
// the website's checkout.
type PaymentsConfig struct {
	Provider       string `json:"provider" example:"stripe"`
	Currency       string `json:"currency" example:"gbp"`
	PublishableKey string `json:"publishableKey,omitempty" example:"pk_test_123"`
}

// Handlers groups the HTTP handlers and their dependencies.
type Handlers struct {
	submitter Submitter
	webhooks  WebhookHandler
	payments  PaymentsConfig
}

// New builds the handler set. webhooks may be nil when payments are off.
func New(s Submitter, w WebhookHandler, p PaymentsConfig) *Handlers {
	return &Handlers{submitter: s, webhooks: w, payments: p}
}
