package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nursery-backend/internal/services"
)

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Receive Stripe payment events
// @Description Verifies the Stripe-Signature header and moves the linked submission to its payment status.
// @Description Redelivered events are acknowledged without changes.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature  header  string  true  "Stripe webhook signature"
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Bad signature"
// @Failure     503  {object}  handlers.ErrorResponse  "Payments unavailable"
// @Router      /webhooks/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	if h.webhooks == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodePaymentUnavailable, msgPaymentsOff)
		return
	}
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Unreadable body")
		return
	}

	rec, err := h.webhooks.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, services.ErrWebhookSignature):
		fail(c, http.StatusBadRequest, ErrCodeBadSignature, msgBadSignature)
		return
	case errors.Is(err, services.ErrPaymentUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodePaymentUnavailable, msgPaymentsOff)
		return
	case err != nil:
		// 5xx makes the provider redeliver.
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"received":  true,
		"eventId":   rec.EventID,
		"applied":   rec.Applied,
		"duplicate": rec.Duplicate,
	})
}

// PaymentsConfig godoc
// @ID          paymentsConfig
// @Summary     Public payment settings
// @Description Provider, currency and publishable key for the website checkout. Secret keys are never returned.
// @Tags        Payments
// @Produce     json
// @Success     200  {object}  handlers.PaymentsConfig
// @Router      /config/payments [get]
func (h *Handlers) PaymentsConfig(c *gin.Context) {
	ok(c, http.StatusOK, h.payments)
}
