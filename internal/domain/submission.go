// Package domain defines the persistence models for form submissions, slot
// claims, idempotency records and payment webhook events. These types are
// mapped with GORM and form the core data layer of the nursery backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionType classifies a submission; it doubles as the logical
// collection name of the document.
type SubmissionType string

const (
	TypeVisitBooking            SubmissionType = "visit_booking"
	TypeClubBooking             SubmissionType = "club_booking"
	TypeDepositPayment          SubmissionType = "deposit_payment"
	TypeWaitlist                SubmissionType = "waitlist"
	TypeContact                 SubmissionType = "contact"
	TypeJobApplication          SubmissionType = "job_application"
	TypeConsentForm             SubmissionType = "consent_form"
	TypeMedicalForm             SubmissionType = "medical_form"
	TypeFundingDeclaration      SubmissionType = "funding_declaration"
	TypeAboutMe                 SubmissionType = "about_me"
	TypeApplicationRegistration SubmissionType = "application_registration"
	TypeChangeDetails           SubmissionType = "change_details"
)

// AllTypes lists every known submission type in a stable order.
var AllTypes = []SubmissionType{
	TypeVisitBooking, TypeClubBooking, TypeDepositPayment, TypeWaitlist,
	TypeContact, TypeJobApplication, TypeConsentForm, TypeMedicalForm,
	TypeFundingDeclaration, TypeAboutMe, TypeApplicationRegistration,
	TypeChangeDetails,
}

// Valid reports whether t is one of the known submission types.
func (t SubmissionType) Valid() bool {
	for _, k := range AllTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Lifecycle labels. Status is a free-text label, not a state machine.
const (
	StatusScheduled       = "scheduled"
	StatusPendingPayment  = "pending_payment"
	StatusReceived        = "received"
	StatusWaiting         = "waiting"
	StatusPaid            = "paid"
	StatusPaymentFailed   = "payment_failed"
	StatusPaymentCanceled = "payment_canceled"
)

// Submission is one persisted form instance.
//
// Fields:
//   - ID: UUID assigned by the store layer (char(36)).
//   - Reference: human-readable identifier shown to the submitter (unique).
//   - Type: classification tag; queries always scope by it.
//   - Status: lifecycle label (see Status* constants).
//   - Email / Name / VisitDate / VisitTime: promoted from the payload so the
//     duplicate-booking lookups can filter on columns.
//   - Payload: the normalized form record as a JSON document.
//   - UserAgent: request user agent, "unknown" when absent.
//   - Payment*: linkage to the third-party payment object, if any.
//
// Submissions are never deleted; only Status and the payment linkage change
// after insert.
type Submission struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Reference string         `json:"reference"  gorm:"type:varchar(32);not null;uniqueIndex:ux_submission_reference"`
	Type      SubmissionType `json:"type"       gorm:"type:varchar(32);not null;index:idx_submission_type_created,priority:1"`
	Status    string         `json:"status"     gorm:"type:varchar(32);not null"`
	Email     string         `json:"email"      gorm:"type:varchar(255);index"`
	Name      string         `json:"name"       gorm:"type:varchar(255)"`
	VisitDate *time.Time     `json:"visit_date,omitempty" gorm:"index"`
	VisitTime string         `json:"visit_time,omitempty" gorm:"type:varchar(16)"`
	Payload   datatypes.JSON `json:"payload"    gorm:"type:text;not null"`
	UserAgent string         `json:"user_agent" gorm:"type:varchar(512);not null;default:'unknown'"`

	PaymentProvider string `json:"payment_provider,omitempty" gorm:"type:varchar(16)"`
	PaymentIntentID string `json:"payment_intent_id,omitempty" gorm:"type:varchar(128);index"`
	PaymentStatus   string `json:"payment_status,omitempty"    gorm:"type:varchar(32)"`
	AmountMinor     int64  `json:"amount_minor,omitempty"`
	Currency        string `json:"currency,omitempty"          gorm:"type:varchar(3)"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_submission_type_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// SlotClaim reserves an exclusive key within a submission type, e.g. a
// (day, time) slot for a visit. The unique (type, key) index is the storage
// level guarantee behind the duplicate-booking rules.
type SlotClaim struct {
	ID           string         `gorm:"type:char(36);primaryKey"`
	Type         SubmissionType `gorm:"type:varchar(32);not null;uniqueIndex:ux_slot_claim,priority:1"`
	Key          string         `gorm:"type:varchar(512);not null;uniqueIndex:ux_slot_claim,priority:2"`
	SubmissionID string         `gorm:"type:char(36);not null;index"`
	CreatedAt    time.Time

	Submission Submission `gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SlotClaim.
func (SlotClaim) TableName() string { return "slot_claims" }

// PaymentEvent records a processed payment webhook so redeliveries are
// applied once, keyed by (provider, event_id).
type PaymentEvent struct {
	ID              string    `gorm:"type:char(36);primaryKey"`
	Provider        string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_payment_event,priority:1"`
	EventID         string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_payment_event,priority:2"`
	EventType       string    `gorm:"type:varchar(64);not null"`
	PaymentIntentID string    `gorm:"type:varchar(128);index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for PaymentEvent.
func (PaymentEvent) TableName() string { return "payment_events" }
