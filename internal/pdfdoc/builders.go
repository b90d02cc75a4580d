package pdfdoc

import (
	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
)

const declarationText = "I confirm that the information given is true and complete to the best of my knowledge."

var builders = map[domain.SubmissionType]Builder{
	domain.TypeJobApplication:          jobApplication,
	domain.TypeApplicationRegistration: registration,
	domain.TypeAboutMe:                 aboutMe,
	domain.TypeMedicalForm:             medical,
	domain.TypeConsentForm:             consent,
	domain.TypeFundingDeclaration:      funding,
	domain.TypeChangeDetails:           changeDetails,
	domain.TypeWaitlist:                waitlist,
}

func child(r forms.Record) *section {
	return newSection(r, "Child").
		row("Name", "childName").
		date("Date of birth", "childDob")
}

func parent(r forms.Record) *section {
	return newSection(r, "Parent or carer").
		row("Name", "parentName").
		row("Email", "email").
		row("Phone", "phone")
}

func declaration(r forms.Record) *section {
	return newSection(r, "Declaration").
		notice(declarationText).
		consent("Declaration accepted", "declaration")
}

func jobApplication(r forms.Record) []Section {
	return collect(
		newSection(r, "Applicant").
			row("Full name", "fullName").
			row("Email", "email").
			row("Phone", "phone").
			row("Address", "address"),
		newSection(r, "Position").
			row("Position applied for", "position").
			row("Availability", "availability").
			date("Available from", "availableFrom"),
		newSection(r, "Qualifications and experience").
			text("Qualifications", "qualifications").
			text("Experience", "experience"),
		newSection(r, "Eligibility").
			row("Right to work in the UK", "rightToWork").
			row("Enhanced DBS check", "dbsCheck"),
		newSection(r, "Cover letter").
			text("Cover letter", "coverLetter"),
		declaration(r),
	)
}

func registration(r forms.Record) []Section {
	return collect(
		child(r).
			row("Gender", "gender").
			row("Home address", "address"),
		parent(r),
		newSection(r, "Emergency contact").
			row("Name", "emergencyName").
			row("Phone", "emergencyPhone").
			row("Relationship", "emergencyRelationship"),
		newSection(r, "Sessions").
			date("Start date", "startDate").
			row("Days", "preferredDays").
			row("Session type", "sessionType"),
		newSection(r, "Medical").
			text("Medical conditions", "medicalConditions"),
		newSection(r, "Other").
			row("How did you hear about us", "hearAboutUs"),
		declaration(r),
	)
}

func aboutMe(r forms.Record) []Section {
	return collect(
		child(r).
			row("Preferred name", "preferredName").
			row("Languages spoken at home", "languages"),
		parent(r),
		newSection(r, "Likes and dislikes").
			text("Likes", "likes").
			text("Dislikes", "dislikes").
			text("Comforters", "comforters"),
		newSection(r, "Routines").
			text("Sleep", "sleepRoutine").
			text("Eating", "eatingRoutine").
			text("Toileting", "toileting"),
		newSection(r, "Anything else").
			text("Additional information", "additionalInfo"),
	)
}

// medical includes the allergy and medication sections only when the
// parent answered Yes.
func medical(r forms.Record) []Section {
	var allergies, medication *section
	if r.Str("hasAllergies") == "Yes" {
		allergies = newSection(r, "Allergies").
			text("Allergy details", "allergiesDetails").
			notice("Staff will be briefed on these allergies before the child's first session.")
	}
	if r.Str("onLongTermMedication") == "Yes" {
		medication = newSection(r, "Medication").
			text("Medication details", "medicationDetails").
			notice("A separate medication consent form must be completed before medicine can be given.")
	}
	return collect(
		child(r),
		parent(r),
		newSection(r, "GP").
			row("GP name", "gpName").
			row("Surgery", "gpSurgery").
			row("Phone", "gpPhone"),
		newSection(r, "Health summary").
			row("Allergies", "hasAllergies").
			row("Long-term medication", "onLongTermMedication").
			row("Immunisations up to date", "immunisationsUpToDate").
			text("Dietary requirements", "dietaryRequirements"),
		allergies,
		medication,
		newSection(r, "Additional notes").
			text("Notes", "additionalNotes"),
		declaration(r),
	)
}

func consent(r forms.Record) []Section {
	return collect(
		child(r),
		parent(r),
		newSection(r, "Consents").
			consent("Photographs for learning journals and displays", "photoConsent").
			consent("Local outings and walks", "outingsConsent").
			consent("Application of sun cream", "sunCreamConsent").
			consent("Emergency first aid and medical treatment", "firstAidConsent"),
		newSection(r, "Signature").
			row("Signed", "signature"),
		declaration(r),
	)
}

func funding(r forms.Record) []Section {
	var notice *section
	if r.Str("fundingType") == "30 hours" {
		notice = newSection(r, "Eligibility").
			row("Eligibility code", "eligibilityCode").
			notice("30 hours codes must be reconfirmed every three months through the government childcare service.")
	}
	return collect(
		child(r),
		parent(r),
		newSection(r, "Funding").
			row("Funding type", "fundingType").
			row("National Insurance number", "niNumber").
			row("Other provider", "otherProvider"),
		notice,
		newSection(r, "Signature").
			row("Signed", "signature"),
		declaration(r),
	)
}

func changeDetails(r forms.Record) []Section {
	return collect(
		child(r),
		parent(r),
		newSection(r, "Changes").
			row("Changes", "changeTypes").
			date("Effective from", "effectiveDate").
			text("Details", "details"),
		newSection(r, "Signature").
			row("Signed", "signature"),
	)
}

func waitlist(r forms.Record) []Section {
	return collect(
		child(r),
		parent(r),
		newSection(r, "Preferences").
			date("Preferred start date", "preferredStartDate").
			row("Preferred days", "preferredDays").
			row("Session type", "sessionType"),
		newSection(r, "Notes").
			text("Notes", "notes"),
		newSection(r, "Status").
			fixed("Position", "Added to the waiting list"),
	)
}
