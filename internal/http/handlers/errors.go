package handlers

// Machine-readable codes of the failure envelope. Clients branch on these;
// messages may change.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation_failed"
	ErrCodeNotFound           = "not_found"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodePaymentFailed      = "payment_failed"
	ErrCodePaymentUnavailable = "payment_unavailable"
	ErrCodeBadSignature       = "bad_signature"
)

// Messages shown for failures whose detail stays server-side.
const (
	msgValidation   = "Validation failed"
	msgInvalidJSON  = "Request body must be a JSON object"
	msgInternal     = "Something went wrong. Please try again or contact us"
	msgPayment      = "We could not start the payment. Please try again"
	msgPaymentsOff  = "Online payments are not available at the moment"
	msgBadSignature = "Invalid webhook signature"
)
