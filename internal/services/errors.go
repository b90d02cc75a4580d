// Package services defines the submission pipeline and payment
// reconciliation. This file centralizes service-level error values so that
// they can be returned consistently by service methods and mapped to HTTP
// statuses by the handler layer.
package services

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownForm is returned for a submission type without a flow.
	ErrUnknownForm = errors.New("unknown form type")

	// ErrSubmissionNotFound indicates that no submission matches the lookup.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrPaymentUnavailable is returned when a monetary flow or webhook runs
	// without a configured payment provider.
	ErrPaymentUnavailable = errors.New("payments are not available")

	// ErrPaymentFailed wraps provider errors while creating an intent. The
	// submission is kept in its pending state.
	ErrPaymentFailed = errors.New("payment intent failed")

	// ErrWebhookSignature is returned for webhook payloads that fail
	// verification.
	ErrWebhookSignature = errors.New("invalid webhook signature")
)

// ValidationError carries every user-correctable field error of one
// submission.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ConflictError reports a duplicate booking. Message is the first conflict;
// Errors lists all of them.
type ConflictError struct {
	Message string
	Errors  []string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }
