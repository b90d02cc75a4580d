package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// Outcome labels shared by the service counters.
const (
	outcomeCreated  = "created"
	outcomeInvalid  = "invalid"
	outcomeConflict = "conflict"
	outcomeReplayed = "replayed"
	outcomeError    = "error"
	outcomeApplied  = "applied"
	outcomeIgnored  = "ignored"
)

var (
	// submissionsTotal counts pipeline runs by submission type and outcome.
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Form submissions by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// paymentIntentsTotal counts payment intent creation attempts.
	paymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// paymentEventsTotal counts webhook events by type and outcome.
	paymentEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Payment webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, paymentIntentsTotal, paymentEventsTotal)
}

func countSubmission(t domain.SubmissionType, outcome string) {
	if !t.Valid() {
		t = "unknown"
	}
	submissionsTotal.WithLabelValues(string(t), outcome).Inc()
}

func countIntent(provider, outcome string) {
	paymentIntentsTotal.WithLabelValues(provider, outcome).Inc()
}
