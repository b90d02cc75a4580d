package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
	"github.com/rs/zerolog/log"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Text        string
	Tag         string
	Metadata    map[string]string
	Attachments []Attachment
}

// Sender dispatches a single message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// postmarkAPI is the slice of the Postmark client used here.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark sends through the Postmark transactional API.
type Postmark struct {
	api    postmarkAPI
	stream string
}

// NewPostmark builds a Postmark sender for a server token and message stream.
func NewPostmark(serverToken, stream string) *Postmark {
	return &Postmark{api: postmark.NewClient(serverToken, ""), stream: stream}
}

// Send implements Sender. A non-zero Postmark error code is an error even
// when the HTTP call succeeded.
func (p *Postmark) Send(ctx context.Context, m Message) (string, error) {
	email := postmark.Email{
		From:          m.From,
		To:            m.To,
		Subject:       m.Subject,
		HTMLBody:      m.HTML,
		TextBody:      m.Text,
		Tag:           m.Tag,
		Metadata:      m.Metadata,
		MessageStream: p.stream,
	}
	for _, a := range m.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        a.Name,
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			ContentType: a.ContentType,
		})
	}

	res, err := p.api.SendEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if res.ErrorCode != 0 {
		return "", fmt.Errorf("postmark: code %d: %s", res.ErrorCode, res.Message)
	}
	return res.MessageID, nil
}

// LogSender only logs messages; used when no email token is configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, m Message) (string, error) {
	if m.To == "" {
		return "", errors.New("notify: empty recipient")
	}
	log.Info().
		Str("to", maskEmail(m.To)).
		Str("subject", m.Subject).
		Str("tag", m.Tag).
		Int("attachments", len(m.Attachments)).
		Msg("email delivery disabled; message logged only")
	return "", nil
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
