package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nursery-backend/internal/http/middleware"
	"github.com/tbourn/nursery-backend/internal/services"
)

// HeaderReplayed marks a response served from a stored idempotent result.
const HeaderReplayed = "Idempotency-Replayed"

// Submit godoc
// @ID          submitForm
// @Summary     Submit a website form
// @Description Validates, stores and acknowledges a form. Monetary forms also create a payment intent
// @Description and return its client secret. Send Idempotency-Key to make retries safe.
// @Tags        Forms
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Client-chosen retry key"
// @Param       body             body    object  true   "Form fields"
// @Success     201  {object}  handlers.SuccessResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate booking"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Payments unavailable"
// @Router      /bookings [post]
// @Router      /club-booking [post]
// @Router      /deposit-payment [post]
// @Router      /waitlist/join [post]
// @Router      /contact [post]
// @Router      /jobs/apply [post]
// @Router      /forms/consent [post]
// @Router      /forms/medical [post]
// @Router      /forms/funding-declaration [post]
// @Router      /forms/about-me [post]
// @Router      /forms/registration [post]
// @Router      /forms/change-details [post]
//
// The body is decoded into a plain JSON object and handed to the pipeline
// unchanged; every field rule lives in the form schema.
func (h *Handlers) Submit(flow services.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw map[string]any
		if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidJSON)
			return
		}

		key, _ := middleware.GetIdempotencyKey(c)
		meta := services.Meta{
			UserAgent:      c.Request.UserAgent(),
			IdempotencyKey: key,
			RequestID:      middleware.GetRequestID(c),
		}

		res, err := h.submitter.Submit(c.Request.Context(), flow.Type, raw, meta)
		if err != nil {
			h.submitError(c, err)
			return
		}

		if res.Replayed {
			c.Header(HeaderReplayed, "true")
		}
		ok(c, http.StatusCreated, SuccessResponse{
			Success: true,
			Message: res.Message,
			Data:    res.Data,
		})
	}
}

// submitError maps pipeline errors onto the failure envelope.
func (h *Handlers) submitError(c *gin.Context, err error) {
	var ve *services.ValidationError
	var ce *services.ConflictError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, msgValidation, ve.Errors...)
	case errors.As(err, &ce):
		fail(c, http.StatusConflict, ErrCodeConflict, ce.Message, ce.Errors...)
	case errors.Is(err, services.ErrUnknownForm):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Unknown form")
	case errors.Is(err, services.ErrPaymentUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodePaymentUnavailable, msgPaymentsOff)
	case errors.Is(err, services.ErrPaymentFailed):
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodePaymentFailed, msgPayment)
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
	}
}
