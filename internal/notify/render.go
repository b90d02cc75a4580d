package notify

import (
	"bytes"
	"embed"
	htmltpl "html/template"
	"strings"
	texttpl "text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
	"github.com/tbourn/nursery-backend/internal/payment"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Org is the organisation contact block shown in emails.
type Org struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
}

// PaymentSummary describes the charge tied to a submission.
type PaymentSummary struct {
	Label       string
	AmountMinor int64
	Currency    string
	Refundable  bool
	IntentID    string
	Status      string
}

// view is the data passed to every template.
type view struct {
	Org           Org
	Type          domain.SubmissionType
	Title         string
	Reference     string
	Submitted     time.Time
	Name          string
	Rows          []forms.Row
	Record        forms.Record
	Payment       *PaymentSummary
	HasAttachment bool

	// Intro is trusted markup produced by the intro templates, which escape
	// their own interpolations.
	Intro     htmltpl.HTML
	IntroText string
}

var titleCaser = cases.Title(language.BritishEnglish)

var funcs = map[string]any{
	"money":    payment.FormatMajor,
	"lower":    strings.ToLower,
	"humanize": Humanize,
	"stamp": func(t time.Time) string {
		return t.Format("Monday 2 January 2006, 15:04 MST")
	},
	"longdate": func(v any) string {
		s, _ := v.(string)
		d, err := time.Parse(forms.DateLayout, s)
		if err != nil {
			return s
		}
		return d.Format("Monday 2 January 2006")
	},
}

// Humanize turns a submission type into a title, e.g. "Visit Booking".
func Humanize(t domain.SubmissionType) string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// Templates holds the parsed HTML and text email templates.
type Templates struct {
	html *htmltpl.Template
	text *texttpl.Template
}

// LoadTemplates parses the embedded templates.
func LoadTemplates() (*Templates, error) {
	h, err := htmltpl.New("email").Funcs(htmltpl.FuncMap(funcs)).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, err
	}
	t, err := texttpl.New("email").Funcs(texttpl.FuncMap(funcs)).ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, err
	}
	return &Templates{html: h, text: t}, nil
}

// Rendered is an HTML/text body pair.
type Rendered struct {
	HTML string
	Text string
}

func (t *Templates) intro(v view) (htmltpl.HTML, string, error) {
	name := "intro:" + string(v.Type)
	if t.html.Lookup(name) == nil {
		name = "intro:default"
	}
	var hb, tb bytes.Buffer
	if err := t.html.ExecuteTemplate(&hb, name, v); err != nil {
		return "", "", err
	}
	if err := t.text.ExecuteTemplate(&tb, name, v); err != nil {
		return "", "", err
	}
	return htmltpl.HTML(hb.String()), strings.TrimSpace(tb.String()), nil
}

func (t *Templates) render(kind string, v view) (Rendered, error) {
	var hb, tb bytes.Buffer
	if err := t.html.ExecuteTemplate(&hb, kind+".html", v); err != nil {
		return Rendered{}, err
	}
	if err := t.text.ExecuteTemplate(&tb, kind+".txt", v); err != nil {
		return Rendered{}, err
	}
	return Rendered{HTML: hb.String(), Text: tb.String()}, nil
}

// Admin renders the internal notification.
func (t *Templates) Admin(v view) (Rendered, error) { return t.render("admin", v) }

// User renders the submitter confirmation, including its per-type intro.
func (t *Templates) User(v view) (Rendered, error) {
	h, txt, err := t.intro(v)
	if err != nil {
		return Rendered{}, err
	}
	v.Intro, v.IntroText = h, txt
	return t.render("user", v)
}

var adminSubjects = map[domain.SubmissionType]string{
	domain.TypeVisitBooking:   "New visit booking",
	domain.TypeClubBooking:    "New club booking",
	domain.TypeDepositPayment: "New deposit payment",
	domain.TypeWaitlist:       "New waiting list entry",
	domain.TypeContact:        "New contact enquiry",
	domain.TypeJobApplication: "New job application",
}

var userSubjects = map[domain.SubmissionType]string{
	domain.TypeVisitBooking:   "Your nursery visit is booked",
	domain.TypeClubBooking:    "Your club booking",
	domain.TypeDepositPayment: "Your deposit payment",
	domain.TypeWaitlist:       "You're on our waiting list",
	domain.TypeContact:        "Thanks for contacting us",
	domain.TypeJobApplication: "We've received your application",
}

func adminSubject(typ domain.SubmissionType, title, name, ref string) string {
	s, ok := adminSubjects[typ]
	if !ok {
		s = "New " + strings.ToLower(title)
	}
	return s + ": " + name + " (" + ref + ")"
}

func userSubject(typ domain.SubmissionType, title, org string) string {
	s, ok := userSubjects[typ]
	if !ok {
		s = "We've received your " + strings.ToLower(title)
	}
	return s + " | " + org
}
