package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
)

// fakeSender records messages and fails for addresses listed in failTo.
type fakeSender struct {
	mu     sync.Mutex
	sent   []Message
	failTo map[string]error
	delay  time.Duration
}

func (f *fakeSender) Send(ctx context.Context, m Message) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTo[m.To]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, m)
	return "msg-" + m.To, nil
}

func (f *fakeSender) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func mustTemplates(t *testing.T) *Templates {
	t.Helper()
	tpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	return tpl
}

func visitNote() Notification {
	rec := forms.Record{
		"parentName": "Jane Doe",
		"email":      "jane@example.com",
		"childName":  "Sam",
		"visitDate":  "2025-06-10",
		"visitTime":  "10:00 AM",
	}
	return Notification{
		Type:        domain.TypeVisitBooking,
		Title:       "Nursery Visit Booking",
		Reference:   "VIS-20250601-ABC123",
		SubmittedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		Rows: []forms.Row{
			{Label: "Parent name", Value: "Jane Doe"},
			{Label: "Visit date", Value: "2025-06-10"},
		},
		Record: rec,
	}
}

func newNotifier(s Sender, t *testing.T) *Notifier {
	return New(s, mustTemplates(t), Options{
		From:  "hello@nursery.test",
		Admin: "office@nursery.test",
		Org:   Org{Name: "Little Acorns Nursery", Phone: "01234 567890"},
	})
}

func TestTemplates_UserVisitIntro(t *testing.T) {
	tpl := mustTemplates(t)
	n := visitNote()
	out, err := tpl.User(view{Org: Org{Name: "Little Acorns"}, Type: n.Type, Title: n.Title,
		Reference: n.Reference, Name: n.Name, Rows: n.Rows, Record: n.Record})
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	for _, want := range []string{"Tuesday 10 June 2025", "10:00 AM", "VIS-20250601-ABC123", "Dear Jane Doe"} {
		if !strings.Contains(out.HTML, want) {
			t.Errorf("html missing %q", want)
		}
		if !strings.Contains(out.Text, want) {
			t.Errorf("text missing %q", want)
		}
	}
}

func TestTemplates_EscapesUserInput(t *testing.T) {
	tpl := mustTemplates(t)
	v := view{
		Type:   domain.TypeContact,
		Title:  "Contact Enquiry",
		Name:   `<script>alert("x")</script>`,
		Rows:   []forms.Row{{Label: "Message", Value: "<b>hi</b>"}},
		Record: forms.Record{},
	}
	out, err := tpl.User(v)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if strings.Contains(out.HTML, "<script>") || strings.Contains(out.HTML, "<b>hi</b>") {
		t.Fatalf("user input not escaped:\n%s", out.HTML)
	}
	if !strings.Contains(out.HTML, "&lt;script&gt;") {
		t.Fatalf("expected escaped script tag:\n%s", out.HTML)
	}
}

func TestTemplates_DefaultIntroAndPayment(t *testing.T) {
	tpl := mustTemplates(t)
	v := view{
		Type:    domain.TypeConsentForm,
		Title:   "Parental Consent Form",
		Name:    "Jane",
		Record:  forms.Record{"childName": "Sam"},
		Payment: &PaymentSummary{Label: "Security deposit", AmountMinor: 25000, Refundable: true, Status: "pending"},
	}
	out, err := tpl.User(v)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if !strings.Contains(out.Text, "parental consent form for Sam") {
		t.Errorf("default intro missing:\n%s", out.Text)
	}
	if !strings.Contains(out.HTML, "£250.00") || !strings.Contains(out.HTML, "(refundable)") {
		t.Errorf("payment block missing:\n%s", out.HTML)
	}
}

func TestTemplates_AdminMentionsAttachment(t *testing.T) {
	tpl := mustTemplates(t)
	out, err := tpl.Admin(view{Type: domain.TypeMedicalForm, Title: "Medical Information Form", HasAttachment: true})
	if err != nil {
		t.Fatalf("Admin: %v", err)
	}
	if !strings.Contains(out.Text, "Form: Medical Form") {
		t.Errorf("humanized type missing:\n%s", out.Text)
	}
	if !strings.Contains(out.HTML, "attached as a PDF") {
		t.Errorf("attachment note missing")
	}
}

func TestSubjects(t *testing.T) {
	if got := adminSubject(domain.TypeVisitBooking, "x", "Jane", "VIS-1"); got != "New visit booking: Jane (VIS-1)" {
		t.Fatalf("adminSubject = %q", got)
	}
	if got := adminSubject(domain.TypeAboutMe, "All About Me", "Jane", "ABT-1"); got != "New all about me: Jane (ABT-1)" {
		t.Fatalf("adminSubject fallback = %q", got)
	}
	if got := userSubject(domain.TypeContact, "x", "Acorns"); got != "Thanks for contacting us | Acorns" {
		t.Fatalf("userSubject = %q", got)
	}
}

func TestNotify_SendsAdminThenUser(t *testing.T) {
	fs := &fakeSender{}
	n := newNotifier(fs, t)
	note := visitNote()
	note.Attachment = &Attachment{Name: "form.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}

	out := n.Notify(context.Background(), note)
	if !out.UserSent() || out.AdminErr != nil {
		t.Fatalf("outcome = %+v", out)
	}
	msgs := fs.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages; want 2", len(msgs))
	}
	if msgs[0].To != "office@nursery.test" || len(msgs[0].Attachments) != 1 {
		t.Fatalf("admin message = %+v", msgs[0])
	}
	if msgs[1].To != "jane@example.com" || len(msgs[1].Attachments) != 0 {
		t.Fatalf("user message = %+v", msgs[1])
	}
	if msgs[1].Metadata["reference"] != note.Reference {
		t.Fatalf("metadata = %v", msgs[1].Metadata)
	}
}

func TestNotify_AdminFailureDoesNotBlockUser(t *testing.T) {
	fs := &fakeSender{failTo: map[string]error{"office@nursery.test": errors.New("boom")}}
	n := newNotifier(fs, t)

	out := n.Notify(context.Background(), visitNote())
	if out.AdminErr == nil {
		t.Fatal("expected admin error")
	}
	if !out.UserSent() || out.UserID != "msg-jane@example.com" {
		t.Fatalf("user send should succeed: %+v", out)
	}
}

func TestNotify_UserFailureReported(t *testing.T) {
	fs := &fakeSender{failTo: map[string]error{"jane@example.com": errors.New("inactive recipient")}}
	n := newNotifier(fs, t)

	out := n.Notify(context.Background(), visitNote())
	if out.UserSent() || out.UserErr.Error() != "inactive recipient" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestNotifyAsync_SurvivesCanceledRequest(t *testing.T) {
	fs := &fakeSender{delay: 20 * time.Millisecond}
	n := newNotifier(fs, t)

	ctx, cancel := context.WithCancel(context.Background())
	n.NotifyAsync(ctx, visitNote())
	cancel()

	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	if err := n.Wait(wctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := len(fs.messages()); got != 2 {
		t.Fatalf("sent %d messages; want 2", got)
	}
}

func TestWait_RespectsContext(t *testing.T) {
	fs := &fakeSender{delay: time.Second}
	n := New(fs, mustTemplates(t), Options{From: "a@b.co", Admin: "c@d.co", AsyncTimeout: 5 * time.Second})
	n.NotifyAsync(context.Background(), visitNote())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := n.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v; want deadline exceeded", err)
	}
}

type fakePostmark struct {
	got postmark.Email
	res postmark.EmailResponse
	err error
}

func (f *fakePostmark) SendEmail(_ context.Context, e postmark.Email) (postmark.EmailResponse, error) {
	f.got = e
	return f.res, f.err
}

func TestPostmark_Send(t *testing.T) {
	api := &fakePostmark{res: postmark.EmailResponse{MessageID: "pm-1"}}
	p := &Postmark{api: api, stream: "outbound"}

	id, err := p.Send(context.Background(), Message{
		From: "a@b.co", To: "c@d.co", Subject: "s", HTML: "<p>h</p>", Text: "t", Tag: "visit_booking-user",
		Attachments: []Attachment{{Name: "f.pdf", ContentType: "application/pdf", Data: []byte("abc")}},
	})
	if err != nil || id != "pm-1" {
		t.Fatalf("Send = %q, %v", id, err)
	}
	if api.got.MessageStream != "outbound" || api.got.HTMLBody != "<p>h</p>" || api.got.TextBody != "t" {
		t.Fatalf("email = %+v", api.got)
	}
	if len(api.got.Attachments) != 1 || api.got.Attachments[0].Content != "YWJj" {
		t.Fatalf("attachments = %+v", api.got.Attachments)
	}
}

func TestPostmark_ErrorCode(t *testing.T) {
	api := &fakePostmark{res: postmark.EmailResponse{ErrorCode: 406, Message: "Inactive recipient"}}
	p := &Postmark{api: api}
	if _, err := p.Send(context.Background(), Message{To: "x@y.co"}); err == nil || !strings.Contains(err.Error(), "406") {
		t.Fatalf("err = %v", err)
	}
}

func TestLogSender(t *testing.T) {
	if _, err := (LogSender{}).Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
	if _, err := (LogSender{}).Send(context.Background(), Message{To: "jane@example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"jane@example.com": "j***@example.com",
		"nope":             "***",
		"@x.co":            "***",
	}
	for in, want := range cases {
		if got := maskEmail(in); got != want {
			t.Errorf("maskEmail(%q) = %q; want %q", in, got, want)
		}
	}
}
