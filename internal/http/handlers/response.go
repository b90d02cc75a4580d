// Package handlers provides the HTTP handlers of the forms API.
//
// Every response uses one envelope so the website can branch on "success":
//
//	HTTP/1.1 201 Created
//	{ "success": true, "message": "Visit booked successfully", "data": {...} }
//
//	HTTP/1.1 400 Bad Request
//	{ "success": false, "message": "Validation failed", "errors": ["..."],
//	  "code": "validation_failed", "request_id": "..." }
//
// 5xx responses carry a generic message only; the cause is logged with the
// request-scoped logger.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nursery-backend/internal/http/middleware"
)

// SuccessResponse is the envelope of a completed submission.
type SuccessResponse struct {
	Success bool           `json:"success" example:"true"`
	Message string         `json:"message" example:"Visit booked successfully"`
	Data    map[string]any `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failure.
type ErrorResponse struct {
	Success bool `json:"success" example:"false"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Validation failed"`
	// Field errors or conflict details, in input order
	Errors []string `json:"errors,omitempty"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"validation_failed"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// fail aborts with the failure envelope. Server errors are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string, errs ...string) {
	resp := ErrorResponse{
		Success:   false,
		Message:   msg,
		Errors:    errs,
		Code:      code,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a JSON body with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
