package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
	"github.com/tbourn/nursery-backend/internal/notify"
	"github.com/tbourn/nursery-backend/internal/payment"
)

// Claim is an exclusive key a submission takes within its type, with the
// message reported when another submission already holds it.
type Claim struct {
	Key     string
	Message string
}

// Pricing is the server-side charge for a monetary flow.
type Pricing struct {
	Label       string
	Description string
	AmountMinor int64
	Refundable  bool
	Metadata    map[string]string
}

// shapeInput is what a flow may echo back in its response data.
type shapeInput struct {
	Raw        map[string]any
	Record     forms.Record
	Submission *domain.Submission
	Intent     *payment.Intent
	Pricing    *Pricing
}

// Flow parameterizes the generic pipeline for one submission type.
type Flow struct {
	Type    domain.SubmissionType
	Route   string // path below the API base, e.g. "/bookings"
	Prefix  string // reference prefix
	Status  string // initial lifecycle label
	Policy  notify.Policy
	Message string // success message

	// NameKey is the record field holding the submitter's display name.
	NameKey string

	Claims func(r forms.Record) []Claim
	Price  func(r forms.Record) (*Pricing, error)
	Shape  func(in shapeInput) map[string]any
}

// Monetary reports whether the flow creates a payment intent.
func (f Flow) Monetary() bool { return f.Price != nil }

func (f Flow) name(r forms.Record) string {
	key := f.NameKey
	if key == "" {
		key = "parentName"
	}
	return r.Str(key)
}

func (f Flow) claims(r forms.Record) []Claim {
	if f.Claims == nil {
		return nil
	}
	return f.Claims(r)
}

const formSubmitted = "Form submitted successfully"

var flows = map[domain.SubmissionType]Flow{
	domain.TypeVisitBooking: {
		Type:    domain.TypeVisitBooking,
		Route:   "/bookings",
		Prefix:  "VIS",
		Status:  domain.StatusScheduled,
		Policy:  notify.Awaited,
		Message: "Visit booked successfully",
		Claims:  visitClaims,
		Shape:   visitShape,
	},
	domain.TypeClubBooking: {
		Type:    domain.TypeClubBooking,
		Route:   "/club-booking",
		Prefix:  "CLB",
		Status:  domain.StatusPendingPayment,
		Policy:  notify.AwaitedWithError,
		Message: "Club booking created. Please complete payment to confirm your place",
		Claims:  clubClaims,
		Price:   clubPrice,
		Shape:   clubShape,
	},
	domain.TypeDepositPayment: {
		Type:    domain.TypeDepositPayment,
		Route:   "/deposit-payment",
		Prefix:  "DEP",
		Status:  domain.StatusPendingPayment,
		Policy:  notify.BestEffortAsync,
		Message: "Payment initiated",
		Price:   depositPrice,
		Shape:   depositShape,
	},
	domain.TypeWaitlist: {
		Type:    domain.TypeWaitlist,
		Route:   "/waitlist/join",
		Prefix:  "WL",
		Status:  domain.StatusWaiting,
		Policy:  notify.Awaited,
		Message: "You have been added to the waiting list",
	},
	domain.TypeContact: {
		Type:    domain.TypeContact,
		Route:   "/contact",
		Prefix:  "CON",
		Status:  domain.StatusReceived,
		Policy:  notify.Awaited,
		Message: "Thank you for your message. We will be in touch soon",
		NameKey: "name",
	},
	domain.TypeJobApplication: {
		Type:    domain.TypeJobApplication,
		Route:   "/jobs/apply",
		Prefix:  "JOB",
		Status:  domain.StatusReceived,
		Policy:  notify.Awaited,
		Message: "Application submitted successfully",
		NameKey: "fullName",
	},
	domain.TypeConsentForm:             documentFlow(domain.TypeConsentForm, "/forms/consent", "CNS"),
	domain.TypeMedicalForm:             documentFlow(domain.TypeMedicalForm, "/forms/medical", "MED"),
	domain.TypeFundingDeclaration:      documentFlow(domain.TypeFundingDeclaration, "/forms/funding-declaration", "FND"),
	domain.TypeAboutMe:                 documentFlow(domain.TypeAboutMe, "/forms/about-me", "ABT"),
	domain.TypeApplicationRegistration: documentFlow(domain.TypeApplicationRegistration, "/forms/registration", "REG"),
	domain.TypeChangeDetails:           documentFlow(domain.TypeChangeDetails, "/forms/change-details", "CHG"),
}

func documentFlow(t domain.SubmissionType, route, prefix string) Flow {
	return Flow{
		Type:    t,
		Route:   route,
		Prefix:  prefix,
		Status:  domain.StatusReceived,
		Policy:  notify.Awaited,
		Message: formSubmitted,
	}
}

// LookupFlow returns the flow registered for t.
func LookupFlow(t domain.SubmissionType) (Flow, error) {
	f, ok := flows[t]
	if !ok {
		return Flow{}, fmt.Errorf("%w: %s", ErrUnknownForm, t)
	}
	return f, nil
}

// Flows lists every flow ordered by route.
func Flows() []Flow {
	out := make([]Flow, 0, len(flows))
	for _, f := range flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// visitClaims blocks a second visit for the same email on one day and a
// second visit in the same slot.
func visitClaims(r forms.Record) []Claim {
	day := r.Str("visitDate")
	return []Claim{
		{Key: "email|" + r.Str("email") + "|" + day, Message: "You already have a visit booked on this date"},
		{Key: "slot|" + day + "|" + r.Str("visitTime"), Message: "This time slot is already booked"},
	}
}

// clubClaims blocks booking the same club twice on one day per email.
func clubClaims(r forms.Record) []Claim {
	club := r.Str("clubTitle")
	email := r.Str("email")
	dates := r.List("selectedDates")
	out := make([]Claim, 0, len(dates))
	for _, d := range dates {
		out = append(out, Claim{
			Key:     email + "|" + strings.ToLower(club) + "|" + d,
			Message: fmt.Sprintf("You have already booked %s on %s", club, longDate(d)),
		})
	}
	return out
}

func clubPrice(r forms.Record) (*Pricing, error) {
	dates := r.List("selectedDates")
	if len(dates) == 0 {
		return nil, fmt.Errorf("club booking without dates")
	}
	club := r.Str("clubTitle")
	plural := "s"
	if len(dates) == 1 {
		plural = ""
	}
	return &Pricing{
		Label:       fmt.Sprintf("%s (%d day%s)", club, len(dates), plural),
		Description: fmt.Sprintf("%s for %s: %s", club, r.Str("childName"), strings.Join(dates, ", ")),
		AmountMinor: payment.ClubTotalMinor(len(dates)),
		Metadata: map[string]string{
			"clubTitle":     club,
			"selectedDates": strings.Join(dates, ","),
		},
	}, nil
}

func depositPrice(r forms.Record) (*Pricing, error) {
	d, ok := payment.LookupDeposit(r.Str("depositType"))
	if !ok {
		return nil, fmt.Errorf("unknown deposit type %q", r.Str("depositType"))
	}
	return &Pricing{
		Label:       d.Label,
		Description: fmt.Sprintf("%s for %s", d.Label, r.Str("childName")),
		AmountMinor: d.AmountMinor,
		Refundable:  d.Refundable,
		Metadata:    map[string]string{"depositType": d.Kind},
	}, nil
}

// visitShape echoes visitDate and visitTime exactly as submitted.
func visitShape(in shapeInput) map[string]any {
	return map[string]any{
		"bookingId": in.Submission.ID,
		"visitDate": in.Raw["visitDate"],
		"visitTime": in.Raw["visitTime"],
	}
}

func clubShape(in shapeInput) map[string]any {
	data := map[string]any{
		"bookingId":       in.Submission.ID,
		"paymentIntentId": in.Submission.PaymentIntentID,
		"amount":          payment.MajorUnits(in.Submission.AmountMinor),
		"clubTitle":       in.Raw["clubTitle"],
		"selectedDates":   in.Raw["selectedDates"],
	}
	addIntent(data, in.Intent)
	return data
}

func depositShape(in shapeInput) map[string]any {
	data := map[string]any{
		"paymentIntentId": in.Submission.PaymentIntentID,
		"amount":          payment.MajorUnits(in.Submission.AmountMinor),
	}
	if d, ok := payment.LookupDeposit(in.Record.Str("depositType")); ok {
		data["depositType"] = d.Kind
		data["refundable"] = d.Refundable
	}
	addIntent(data, in.Intent)
	return data
}

func addIntent(data map[string]any, in *payment.Intent) {
	if in == nil {
		return
	}
	data["clientSecret"] = in.ClientSecret
	if in.RedirectURL != "" {
		data["redirectUrl"] = in.RedirectURL
	}
}

func longDate(s string) string {
	d, err := time.Parse(forms.DateLayout, s)
	if err != nil {
		return s
	}
	return d.Format("Monday 2 January 2006")
}
