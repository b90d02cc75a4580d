// Package notify renders and delivers the emails sent for each submission:
// an internal notification to the nursery's admin inbox and a confirmation
// to the submitter. Delivery goes through a Sender (Postmark in production,
// a logging sender in development); rendering uses embedded templates.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
)

// Policy decides how a submission flow treats email delivery.
type Policy int

const (
	// Awaited sends before responding; the outcome is reported as emailSent.
	Awaited Policy = iota
	// AwaitedWithError sends before responding and surfaces the user-send
	// error message as emailError.
	AwaitedWithError
	// BestEffortAsync sends in the background after responding.
	BestEffortAsync
)

func (p Policy) String() string {
	switch p {
	case Awaited:
		return "awaited"
	case AwaitedWithError:
		return "awaited_with_error"
	case BestEffortAsync:
		return "async"
	}
	return "unknown"
}

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Emails attempted by recipient kind and outcome.",
	},
	[]string{"recipient", "outcome"},
)

func init() {
	prometheus.MustRegister(notificationsTotal)
}

// Notification is everything needed to render both emails of a submission.
type Notification struct {
	Type        domain.SubmissionType
	Title       string
	Reference   string
	SubmittedAt time.Time
	Name        string
	Email       string
	Rows        []forms.Row
	Record      forms.Record
	Payment     *PaymentSummary

	// Attachment goes to the admin email only.
	Attachment *Attachment
}

// Outcome reports both send attempts. The admin failure never affects the
// submitter-facing result.
type Outcome struct {
	AdminID  string
	UserID   string
	AdminErr error
	UserErr  error
}

// UserSent reports whether the submitter confirmation was accepted.
func (o Outcome) UserSent() bool { return o.UserErr == nil }

// Options configures a Notifier.
type Options struct {
	From  string
	Admin string
	Org   Org

	// AsyncTimeout bounds each background delivery; defaults to 30s.
	AsyncTimeout time.Duration
}

// Notifier renders and sends submission emails.
type Notifier struct {
	sender Sender
	tpl    *Templates
	opts   Options
	wg     sync.WaitGroup
}

// New builds a Notifier around sender.
func New(sender Sender, tpl *Templates, opts Options) *Notifier {
	if opts.AsyncTimeout <= 0 {
		opts.AsyncTimeout = 30 * time.Second
	}
	return &Notifier{sender: sender, tpl: tpl, opts: opts}
}

func (n *Notifier) view(note Notification) view {
	return view{
		Org:           n.opts.Org,
		Type:          note.Type,
		Title:         note.Title,
		Reference:     note.Reference,
		Submitted:     note.SubmittedAt,
		Name:          note.Name,
		Rows:          note.Rows,
		Record:        note.Record,
		Payment:       note.Payment,
		HasAttachment: note.Attachment != nil,
	}
}

// Notify sends the admin email, then the user confirmation. Both are
// attempted regardless of the other's result.
func (n *Notifier) Notify(ctx context.Context, note Notification) Outcome {
	var out Outcome
	v := n.view(note)
	meta := map[string]string{"reference": note.Reference, "type": string(note.Type)}

	out.AdminID, out.AdminErr = n.sendAdmin(ctx, note, v, meta)
	record("admin", out.AdminErr)
	if out.AdminErr != nil {
		log.Warn().Err(out.AdminErr).
			Str("reference", note.Reference).
			Str("type", string(note.Type)).
			Msg("admin notification failed")
	}

	out.UserID, out.UserErr = n.sendUser(ctx, note, v, meta)
	record("user", out.UserErr)
	if out.UserErr != nil {
		log.Error().Err(out.UserErr).
			Str("reference", note.Reference).
			Str("type", string(note.Type)).
			Msg("user confirmation failed")
	}
	return out
}

func (n *Notifier) sendAdmin(ctx context.Context, note Notification, v view, meta map[string]string) (string, error) {
	if n.opts.Admin == "" {
		return "", errors.New("notify: admin address not configured")
	}
	body, err := n.tpl.Admin(v)
	if err != nil {
		return "", err
	}
	m := Message{
		From:     n.opts.From,
		To:       n.opts.Admin,
		Subject:  adminSubject(note.Type, note.Title, note.Name, note.Reference),
		HTML:     body.HTML,
		Text:     body.Text,
		Tag:      string(note.Type) + "-admin",
		Metadata: meta,
	}
	if note.Attachment != nil {
		m.Attachments = []Attachment{*note.Attachment}
	}
	return n.sender.Send(ctx, m)
}

func (n *Notifier) sendUser(ctx context.Context, note Notification, v view, meta map[string]string) (string, error) {
	if note.Email == "" {
		return "", errors.New("notify: submitter email missing")
	}
	body, err := n.tpl.User(v)
	if err != nil {
		return "", err
	}
	return n.sender.Send(ctx, Message{
		From:     n.opts.From,
		To:       note.Email,
		Subject:  userSubject(note.Type, note.Title, n.opts.Org.Name),
		HTML:     body.HTML,
		Text:     body.Text,
		Tag:      string(note.Type) + "-user",
		Metadata: meta,
	})
}

// NotifyAsync runs Notify in the background. The request context's values
// are kept but its cancellation is not, so a finished response does not
// abort delivery. Each run is bounded by AsyncTimeout.
func (n *Notifier) NotifyAsync(ctx context.Context, note Notification) {
	bg := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(bg, n.opts.AsyncTimeout)
		defer cancel()
		n.Notify(ctx, note)
	}()
}

// Wait blocks until background deliveries finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func record(recipient string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notificationsTotal.WithLabelValues(recipient, outcome).Inc()
}
