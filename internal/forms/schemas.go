package forms

import (
	"fmt"
	"math"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/payment"
)

// Allow-lists shared by schemas and templates.
var (
	VisitTimes  = []string{"9:00 AM", "10:00 AM", "11:00 AM", "1:00 PM", "2:00 PM", "3:00 PM"}
	ClubTitles  = []string{"Breakfast Club", "After School Club", "Holiday Club"}
	Weekdays    = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	SessionKind = []string{"Full day", "Morning", "Afternoon"}
	Positions   = []string{"Nursery Practitioner", "Room Leader", "Nursery Assistant", "Apprentice", "Cook", "Other"}
	Genders     = []string{"Male", "Female", "Other", "Prefer not to say"}
	Funding     = []string{"15 hours", "30 hours", "2 year old funding", "None"}
	ChangeKinds = []string{"Address", "Phone number", "Email", "Emergency contact", "Sessions", "Medical", "Other"}
)

var (
	future        = DateRule{NotPast: true}
	futureWeekday = DateRule{NotPast: true, WeekdayOnly: true}
	birth         = DateRule{PastOnly: true}
)

func parent() []Field {
	return []Field{
		{Key: "parentName", Label: "Parent name", Kind: KindString, Required: true, Min: 2, Max: 100},
		{Key: "email", Label: "Email", Kind: KindEmail, Required: true},
		{Key: "phone", Label: "Phone", Kind: KindPhone, Required: true},
		{Key: "childName", Label: "Child name", Kind: KindString, Required: true, Min: 2, Max: 100},
	}
}

func with(base []Field, more ...Field) []Field {
	return append(base, more...)
}

var registry = map[domain.SubmissionType]Schema{
	domain.TypeVisitBooking: {
		Type:  domain.TypeVisitBooking,
		Title: "Nursery Visit Booking",
		Fields: with(parent(),
			Field{Key: "childAge", Label: "Child age", Kind: KindString, Max: 50},
			Field{Key: "visitDate", Label: "Visit date", Kind: KindDate, Required: true, Date: futureWeekday},
			Field{Key: "visitTime", Label: "Visit time", Kind: KindEnum, Required: true, Options: VisitTimes},
			Field{Key: "message", Label: "Message", Kind: KindString, Max: 2000},
		),
	},
	domain.TypeClubBooking: {
		Type:  domain.TypeClubBooking,
		Title: "Club Booking",
		Fields: with(parent(),
			Field{Key: "childAge", Label: "Child age", Kind: KindString, Required: true, Min: 1, Max: 50},
			Field{Key: "clubTitle", Label: "Club", Kind: KindEnum, Required: true, Options: ClubTitles},
			Field{Key: "selectedDates", Label: "Dates", Kind: KindList, Required: true, Min: 1, Max: 5,
				Elem: KindDate, Date: futureWeekday, Unique: true},
			Field{Key: "clubPrice", Label: "Club price", Kind: KindNumber, Required: true, Min: 0},
			Field{Key: "totalAmount", Label: "Total amount", Kind: KindNumber, Required: true, Min: 0},
			Field{Key: "notes", Label: "Notes", Kind: KindString, Max: 2000},
		),
		Checks: []Check{clubPricing},
	},
	domain.TypeDepositPayment: {
		Type:  domain.TypeDepositPayment,
		Title: "Deposit Payment",
		Fields: with(parent(),
			Field{Key: "depositType", Label: "Deposit type", Kind: KindEnum, Required: true, Options: payment.DepositKinds()},
			Field{Key: "startDate", Label: "Start date", Kind: KindDate, Date: future},
		),
	},
	domain.TypeWaitlist: {
		Type:  domain.TypeWaitlist,
		Title: "Waiting List",
		Fields: with(parent(),
			Field{Key: "childDob", Label: "Date of birth", Kind: KindDate, Required: true, Date: birth},
			Field{Key: "preferredStartDate", Label: "Preferred start date", Kind: KindDate, Required: true, Date: future},
			Field{Key: "preferredDays", Label: "Preferred days", Kind: KindList, Required: true, Min: 1, Max: 5,
				Elem: KindEnum, Options: Weekdays, Unique: true},
			Field{Key: "sessionType", Label: "Session type", Kind: KindEnum, Required: true, Options: SessionKind},
			Field{Key: "notes", Label: "Notes", Kind: KindString, Max: 2000},
		),
	},
	domain.TypeContact: {
		Type:  domain.TypeContact,
		Title: "Contact Enquiry",
		Fields: []Field{
			{Key: "name", Label: "Name", Kind: KindString, Required: true, Min: 2, Max: 100},
			{Key: "email", Label: "Email", Kind: KindEmail, Required: true},
			{Key: "phone", Label: "Phone", Kind: KindPhone},
			{Key: "subject", Label: "Subject", Kind: KindString, Required: true, Min: 2, Max: 200},
			{Key: "message", Label: "Message", Kind: KindString, Required: true, Min: 10, Max: 5000},
		},
	},
	domain.TypeJobApplication: {
		Type:  domain.TypeJobApplication,
		Title: "Job Application",
		Fields: []Field{
			{Key: "fullName", Label: "Full name", Kind: KindString, Required: true, Min: 2, Max: 100},
			{Key: "email", Label: "Email", Kind: KindEmail, Required: true},
			{Key: "phone", Label: "Phone", Kind: KindPhone, Required: true},
			{Key: "address", Label: "Address", Kind: KindString, Required: true, Min: 10, Max: 500},
			{Key: "position", Label: "Position", Kind: KindEnum, Required: true, Options: Positions},
			{Key: "qualifications", Label: "Qualifications", Kind: KindString, Required: true, Min: 2, Max: 2000},
			{Key: "experience", Label: "Experience", Kind: KindString, Required: true, Min: 10, Max: 5000},
			{Key: "availability", Label: "Availability", Kind: KindString, Required: true, Min: 2, Max: 500},
			{Key: "availableFrom", Label: "Available from", Kind: KindDate, Date: future},
			{Key: "rightToWork", Label: "Right to work in the UK", Kind: KindYesNo, Required: true},
			{Key: "dbsCheck", Label: "Enhanced DBS check", Kind: KindYesNo, Required: true},
			{Key: "coverLetter", Label: "Cover letter", Kind: KindString, Required: true, Min: 50, Max: 10000},
			{Key: "declaration", Label: "Declaration", Kind: KindBool, Required: true, MustBeTrue: true},
		},
	},
	domain.TypeConsentForm: {
		Type:  domain.TypeConsentForm,
		Title: "Parental Consent Form",
		Fields: with(parent(),
			Field{Key: "photoConsent", Label: "Photographs", Kind: KindYesNo, Required: true},
			Field{Key: "outingsConsent", Label: "Local outings", Kind: KindYesNo, Required: true},
			Field{Key: "sunCreamConsent", Label: "Sun cream", Kind: KindYesNo, Required: true},
			Field{Key: "firstAidConsent", Label: "Emergency first aid", Kind: KindYesNo, Required: true},
			Field{Key: "signature", Label: "Signature", Kind: KindString, Required: true, Min: 2, Max: 100},
			Field{Key: "declaration", Label: "Declaration", Kind: KindBool, Required: true, MustBeTrue: true},
		),
	},
	domain.TypeMedicalForm: {
		Type:  domain.TypeMedicalForm,
		Title: "Medical Information Form",
		Fields: with(parent(),
			Field{Key: "childDob", Label: "Date of birth", Kind: KindDate, Required: true, Date: birth},
			Field{Key: "gpName", Label: "GP name", Kind: KindString, Required: true, Min: 2, Max: 100},
			Field{Key: "gpSurgery", Label: "GP surgery", Kind: KindString, Required: true, Min: 2, Max: 200},
			Field{Key: "gpPhone", Label: "GP phone", Kind: KindPhone, Required: true},
			Field{Key: "hasAllergies", Label: "Allergies", Kind: KindYesNo, Required: true},
			Field{Key: "allergiesDetails", Label: "Allergy details", Kind: KindString, Min: 2, Max: 2000,
				RequiredIf: &Cond{Key: "hasAllergies", Equals: "Yes"}},
			Field{Key: "onLongTermMedication", Label: "Long-term medication", Kind: KindYesNo, Required: true},
			Field{Key: "medicationDetails", Label: "Medication details", Kind: KindString, Min: 2, Max: 2000,
				RequiredIf: &Cond{Key: "onLongTermMedication", Equals: "Yes"}},
			Field{Key: "dietaryRequirements", Label: "Dietary requirements", Kind: KindString, Max: 2000},
			Field{Key: "immunisationsUpToDate", Label: "Immunisations up to date", Kind: KindYesNo, Required: true},
			Field{Key: "additionalNotes", Label: "Additional notes", Kind: KindString, Max: 2000},
			Field{Key: "declaration", Label: "Declaration", Kind: KindBool, Required: true, MustBeTrue: true},
		),
	},
	domain.TypeFundingDeclaration: {
		Type:  domain.TypeFundingDeclaration,
		Title: "Funding Declaration",
		Fields: with(parent(),
			Field{Key: "childDob", Label: "Date of birth", Kind: KindDate, Required: true, Date: birth},
			Field{Key: "fundingType", Label: "Funding type", Kind: KindEnum, Required: true, Options: Funding},
			Field{Key: "eligibilityCode", Label: "Eligibility code", Kind: KindString, Min: 11, Max: 11,
				RequiredIf: &Cond{Key: "fundingType", Equals: "30 hours"}},
			Field{Key: "niNumber", Label: "National Insurance number", Kind: KindString, Min: 9, Max: 13},
			Field{Key: "otherProvider", Label: "Other provider", Kind: KindString, Max: 200},
			Field{Key: "signature", Label: "Signature", Kind: KindString, Required: true, Min: 2, Max: 100},
			Field{Key: "declaration", Label: "Declaration", Kind: KindBool, Required: true, MustBeTrue: true},
		),
	},
	domain.TypeAboutMe: {
		Type:  domain.TypeAboutMe,
		Title: "All About Me",
		Fields: with(parent(),
			Field{Key: "preferredName", Label: "Preferred name", Kind: KindString, Max: 100},
			Field{Key: "languages", Label: "Languages spoken at home", Kind: KindString, Required: true, Min: 2, Max: 200},
			Field{Key: "likes", Label: "Likes", Kind: KindString, Required: true, Min: 2, Max: 2000},
			Field{Key: "dislikes", Label: "Dislikes", Kind: KindString, Max: 2000},
			Field{Key: "comforters", Label: "Comforters", Kind: KindString, Max: 1000},
			Field{Key: "sleepRoutine", Label: "Sleep routine", Kind: KindString, Max: 2000},
			Field{Key: "eatingRoutine", Label: "Eating routine", Kind: KindString, Max: 2000},
			Field{Key: "toileting", Label: "Toileting", Kind: KindString, Max: 1000},
			Field{Key: "additionalInfo", Label: "Anything else", Kind: KindString, Max: 5000},
		),
	},
	domain.TypeApplicationRegistration: {
		Type:  domain.TypeApplicationRegistration,
		Title: "Child Registration",
		Fields: with(parent(),
			Field{Key: "childDob", Label: "Date of birth", Kind: KindDate, Required: true, Date: birth},
			Field{Key: "gender", Label: "Gender", Kind: KindEnum, Required: true, Options: Genders},
			Field{Key: "address", Label: "Home address", Kind: KindString, Required: true, Min: 10, Max: 500},
			Field{Key: "emergencyName", Label: "Emergency contact name", Kind: KindString, Required: true, Min: 2, Max: 100},
			Field{Key: "emergencyPhone", Label: "Emergency contact phone", Kind: KindPhone, Required: true},
			Field{Key: "emergencyRelationship", Label: "Relationship to child", Kind: KindString, Required: true, Min: 2, Max: 100},
			Field{Key: "startDate", Label: "Start date", Kind: KindDate, Required: true, Date: futureWeekday},
			Field{Key: "preferredDays", Label: "Days", Kind: KindList, Required: true, Min: 1, Max: 5,
				Elem: KindEnum, Options: Weekdays, Unique: true},
			Field{Key: "sessionType", Label: "Session type", Kind: KindEnum, Required: true, Options: SessionKind},
			Field{Key: "medicalConditions", Label: "Medical conditions", Kind: KindString, Max: 2000},
			Field{Key: "hearAboutUs", Label: "How did you hear about us", Kind: KindString, Max: 200},
			Field{Key: "declaration", Label: "Declaration", Kind: KindBool, Required: true, MustBeTrue: true},
		),
	},
	domain.TypeChangeDetails: {
		Type:  domain.TypeChangeDetails,
		Title: "Change of Details",
		Fields: with(parent(),
			Field{Key: "changeTypes", Label: "Changes", Kind: KindList, Required: true, Min: 1, Max: len(ChangeKinds),
				Elem: KindEnum, Options: ChangeKinds, Unique: true},
			Field{Key: "details", Label: "Details", Kind: KindString, Required: true, Min: 10, Max: 5000},
			Field{Key: "effectiveDate", Label: "Effective date", Kind: KindDate, Required: true, Date: future},
			Field{Key: "signature", Label: "Signature", Kind: KindString, Required: true, Min: 2, Max: 100},
		),
	},
}

// Lookup returns the schema registered for t.
func Lookup(t domain.SubmissionType) (Schema, error) {
	s, ok := registry[t]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownSchema, t)
	}
	return s, nil
}

// clubPricing requires the per-day price to match the fee table and the
// total to equal price × number of dates. A mismatch is reported, never
// corrected.
func clubPricing(r Record) []string {
	var errs []string
	price, hasPrice := r.Num("clubPrice")
	total, hasTotal := r.Num("totalAmount")
	dates := r.List("selectedDates")

	if hasPrice && !sameAmount(price, payment.MajorUnits(payment.ClubDayMinor)) {
		errs = append(errs, fmt.Sprintf("Club price must be %s per day", payment.FormatMajor(payment.ClubDayMinor)))
	}
	if hasPrice && hasTotal && len(dates) > 0 && !sameAmount(total, price*float64(len(dates))) {
		errs = append(errs, "Total amount does not match the selected dates")
	}
	return errs
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
