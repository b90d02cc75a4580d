// Package services – Pipeline
//
// This file implements the generic submission pipeline shared by every form
// endpoint: validate → idempotent replay → duplicate pre-check → insert with
// slot claims → (payment intent) → notify → response data. Each stage runs
// sequentially on the request context; per-type behaviour comes from the Flow
// table in flows.go.
//
// Observability: Submit is OpenTelemetry-instrumented with one span per
// stage, and every outcome is counted in submissions_total.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
	"github.com/tbourn/nursery-backend/internal/notify"
	"github.com/tbourn/nursery-backend/internal/payment"
	"github.com/tbourn/nursery-backend/internal/pdfdoc"
	"github.com/tbourn/nursery-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store hands out the process-wide database handle; repo.Lazy implements it.
type Store interface {
	Get(ctx context.Context) (*gorm.DB, error)
}

// Notifier delivers submission emails; notify.Notifier implements it.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) notify.Outcome
	NotifyAsync(ctx context.Context, n notify.Notification)
	Wait(ctx context.Context) error
}

// DocRenderer turns a document into PDF bytes; pdfdoc.Renderer implements it.
type DocRenderer interface {
	Render(doc pdfdoc.Document) ([]byte, error)
}

// Meta is request metadata merged into the stored submission.
type Meta struct {
	UserAgent      string
	IdempotencyKey string
	RequestID      string
}

// Result is a completed (or replayed) submission.
type Result struct {
	Submission *domain.Submission
	Intent     *payment.Intent
	Outcome    *notify.Outcome
	Replayed   bool
	Message    string
	Data       map[string]any
}

// emailErrorMessage is surfaced when an awaited-with-error flow could not
// deliver the submitter's confirmation.
const emailErrorMessage = "Your booking was saved but we could not send the confirmation email"

// Pipeline runs submissions end to end.
type Pipeline struct {
	Store     Store
	Validator *forms.Validator
	Payments  payment.Initiator
	Notifier  Notifier
	Renderer  DocRenderer

	Currency       string
	IdempotencyTTL time.Duration
	Location       *time.Location
	Now            func() time.Time
	// Reference overrides NewReference.
	Reference func(prefix string, at time.Time) string
}

// referenceAttempts bounds how many fresh references insert tries after a
// reference collision.
const referenceAttempts = 3

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.UTC
}

func (p *Pipeline) reference(prefix string, at time.Time) string {
	if p.Reference != nil {
		return p.Reference(prefix, at)
	}
	return NewReference(prefix, at)
}

// Submit validates raw against the flow for typ and runs the remaining
// stages. It returns *ValidationError, *ConflictError, ErrUnknownForm,
// ErrPaymentUnavailable or a wrapped upstream error.
func (p *Pipeline) Submit(ctx context.Context, typ domain.SubmissionType, raw map[string]any, meta Meta) (*Result, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("submission.type", string(typ))),
	)
	defer span.End()

	res, outcome, err := p.submit(ctx, typ, raw, meta)
	countSubmission(typ, outcome)
	span.SetAttributes(attribute.String("submission.outcome", outcome))
	if err != nil && outcome == outcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
	}
	return res, err
}

func (p *Pipeline) submit(ctx context.Context, typ domain.SubmissionType, raw map[string]any, meta Meta) (*Result, string, error) {
	flow, err := LookupFlow(typ)
	if err != nil {
		return nil, outcomeInvalid, err
	}
	schema, err := forms.Lookup(typ)
	if err != nil {
		return nil, outcomeInvalid, fmt.Errorf("%w: %s", ErrUnknownForm, typ)
	}

	vr := p.Validator.Validate(schema, raw)
	if !vr.Valid {
		return nil, outcomeInvalid, &ValidationError{Errors: vr.Errors}
	}
	rec := vr.Record

	db, err := p.Store.Get(ctx)
	if err != nil {
		return nil, outcomeError, fmt.Errorf("open store: %w", err)
	}

	if meta.IdempotencyKey != "" {
		res, err := p.replay(ctx, db, flow, raw, meta.IdempotencyKey)
		switch {
		case err == nil:
			return res, outcomeReplayed, nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, outcomeError, err
		}
	}

	// Nothing is stored for a fee-bearing form that cannot be charged.
	if flow.Monetary() && !payment.Available(p.Payments) {
		return nil, outcomeError, ErrPaymentUnavailable
	}

	claims := flow.claims(rec)
	if err := p.precheck(ctx, db, typ, claims); err != nil {
		return nil, outcomeFor(err), err
	}

	sub, err := p.insert(ctx, db, flow, rec, claims, meta)
	if err != nil {
		return nil, outcomeFor(err), err
	}
	lg := log.With().
		Str("request_id", meta.RequestID).
		Str("reference", sub.Reference).
		Str("type", string(typ)).
		Logger()

	var intent *payment.Intent
	var price *Pricing
	if flow.Monetary() {
		intent, price, err = p.charge(ctx, db, flow, rec, sub, meta)
		if err != nil {
			// The submission stays stored in its pending state.
			lg.Error().Err(err).Msg("payment intent failed")
			return nil, outcomeError, err
		}
	}

	if meta.IdempotencyKey != "" {
		if _, err := repo.CreateIdempotency(ctx, db, flow.Route, meta.IdempotencyKey, sub.ID, http.StatusCreated, p.IdempotencyTTL); err != nil {
			lg.Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	note := p.notification(ctx, flow, schema, rec, sub, price, &lg)
	res := &Result{Submission: sub, Intent: intent, Message: flow.Message}
	switch flow.Policy {
	case notify.BestEffortAsync:
		p.Notifier.NotifyAsync(ctx, note)
	default:
		o := p.Notifier.Notify(ctx, note)
		res.Outcome = &o
	}

	res.Data = p.shape(flow, shapeInput{Raw: raw, Record: rec, Submission: sub, Intent: intent, Pricing: price}, res.Outcome)
	lg.Info().Str("status", sub.Status).Msg("submission stored")
	return res, outcomeCreated, nil
}

// precheck rejects the submission when any of its claims is already held.
func (p *Pipeline) precheck(ctx context.Context, db *gorm.DB, typ domain.SubmissionType, claims []Claim) error {
	if len(claims) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("services/Pipeline").Start(ctx, "precheck")
	defer span.End()

	taken, err := repo.ClaimedKeys(ctx, db, typ, claimKeys(claims))
	if err != nil {
		return fmt.Errorf("check duplicates: %w", err)
	}
	if len(taken) > 0 {
		return conflict(claims, taken)
	}
	return nil
}

func (p *Pipeline) insert(ctx context.Context, db *gorm.DB, flow Flow, rec forms.Record, claims []Claim, meta Meta) (*domain.Submission, error) {
	ctx, span := otel.Tracer("services/Pipeline").Start(ctx, "insert")
	defer span.End()

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := p.now().UTC()
	sub := &domain.Submission{
		Reference: p.reference(flow.Prefix, now.In(p.loc())),
		Type:      flow.Type,
		Status:    flow.Status,
		Email:     rec.Str("email"),
		Name:      flow.name(rec),
		Payload:   datatypes.JSON(payload),
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d, err := time.Parse(forms.DateLayout, rec.Str("visitDate")); err == nil {
		sub.VisitDate = &d
		sub.VisitTime = rec.Str("visitTime")
	}

	keys := claimKeys(claims)
	stored, err := repo.InsertSubmission(ctx, db, sub, keys)
	for i := 1; i < referenceAttempts && errors.Is(err, repo.ErrReferenceTaken); i++ {
		log.Warn().Str("reference", sub.Reference).Msg("reference collision, retrying")
		sub.ID = ""
		sub.Reference = p.reference(flow.Prefix, now.In(p.loc()))
		stored, err = repo.InsertSubmission(ctx, db, sub, keys)
	}
	if errors.Is(err, repo.ErrReferenceTaken) {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost a race with a concurrent submission; report what it took.
		taken, cerr := repo.ClaimedKeys(ctx, db, flow.Type, keys)
		if cerr == nil && len(taken) > 0 {
			return nil, conflict(claims, taken)
		}
		return nil, &ConflictError{
			Message: "This submission conflicts with an existing one",
			Errors:  []string{"This submission conflicts with an existing one"},
		}
	}
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	span.SetAttributes(attribute.String("submission.reference", stored.Reference))
	return stored, nil
}

func (p *Pipeline) charge(ctx context.Context, db *gorm.DB, flow Flow, rec forms.Record, sub *domain.Submission, meta Meta) (*payment.Intent, *Pricing, error) {
	ctx, span := otel.Tracer("services/Pipeline").Start(ctx, "charge")
	defer span.End()

	price, err := flow.Price(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("price %s: %w", flow.Type, err)
	}
	md := map[string]string{
		"reference":  sub.Reference,
		"type":       string(flow.Type),
		"parentName": rec.Str("parentName"),
		"childName":  rec.Str("childName"),
	}
	for k, v := range price.Metadata {
		md[k] = v
	}
	ch := payment.Charge{
		AmountMinor:  price.AmountMinor,
		Currency:     p.Currency,
		ReceiptEmail: sub.Email,
		Description:  price.Description,
		Reference:    sub.Reference,
		Customer:     payment.Customer{Name: sub.Name, Email: sub.Email, Phone: rec.Str("phone")},
		Metadata:     md,
	}
	if meta.IdempotencyKey != "" {
		ch.IdempotencyKey = flow.Route + ":" + meta.IdempotencyKey
	}

	provider := p.Payments.Provider()
	intent, err := p.Payments.CreateIntent(ctx, ch)
	if err != nil {
		countIntent(provider, outcomeError)
		span.RecordError(err)
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, nil, ErrPaymentUnavailable
		}
		return nil, nil, fmt.Errorf("%w: create payment intent: %v", ErrPaymentFailed, err)
	}
	countIntent(provider, outcomeCreated)

	link := repo.PaymentLink{
		Provider:    intent.Provider,
		IntentID:    intent.ID,
		Status:      intent.Status,
		AmountMinor: price.AmountMinor,
		Currency:    p.Currency,
	}
	if err := repo.AttachPayment(ctx, db, sub.ID, link); err != nil {
		return nil, nil, fmt.Errorf("attach payment: %w", err)
	}
	sub.PaymentProvider = link.Provider
	sub.PaymentIntentID = link.IntentID
	sub.PaymentStatus = link.Status
	sub.AmountMinor = link.AmountMinor
	sub.Currency = link.Currency
	return intent, price, nil
}

// notification assembles both emails' data and, for document flows, the
// PDF attachment. A render failure only drops the attachment.
func (p *Pipeline) notification(ctx context.Context, flow Flow, schema forms.Schema, rec forms.Record, sub *domain.Submission, price *Pricing, lg *zerolog.Logger) notify.Notification {
	n := notify.Notification{
		Type:        flow.Type,
		Title:       schema.Title,
		Reference:   sub.Reference,
		SubmittedAt: sub.CreatedAt.In(p.loc()),
		Name:        sub.Name,
		Email:       sub.Email,
		Rows:        schema.Rows(rec),
		Record:      rec,
	}
	if price != nil {
		n.Payment = &notify.PaymentSummary{
			Label:       price.Label,
			AmountMinor: price.AmountMinor,
			Currency:    p.Currency,
			Refundable:  price.Refundable,
			IntentID:    sub.PaymentIntentID,
			Status:      sub.PaymentStatus,
		}
	}
	if p.Renderer == nil {
		return n
	}
	doc, ok := pdfdoc.Build(flow.Type, schema.Title, sub.Reference, n.SubmittedAt, rec)
	if !ok {
		return n
	}
	_, span := otel.Tracer("services/Pipeline").Start(ctx, "render_pdf")
	defer span.End()
	pdf, err := p.Renderer.Render(doc)
	if err != nil {
		lg.Warn().Err(err).Msg("pdf render failed; sending without attachment")
		return n
	}
	n.Attachment = &notify.Attachment{
		Name:        sub.Reference + ".pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	}
	return n
}

func (p *Pipeline) shape(flow Flow, in shapeInput, o *notify.Outcome) map[string]any {
	data := map[string]any{}
	if flow.Shape != nil {
		data = flow.Shape(in)
	}
	data["reference"] = in.Submission.Reference
	data["status"] = in.Submission.Status
	if _, ok := data["bookingId"]; !ok {
		data["submissionId"] = in.Submission.ID
	}
	if o != nil {
		data["emailSent"] = o.UserSent()
		if flow.Policy == notify.AwaitedWithError && o.UserErr != nil {
			data["emailError"] = emailErrorMessage
		}
	}
	return data
}

// replay returns the stored result for a previously completed request with
// the same route and key. Provider secrets are not stored, so a replayed
// monetary response carries the intent id without its client secret.
func (p *Pipeline) replay(ctx context.Context, db *gorm.DB, flow Flow, raw map[string]any, key string) (*Result, error) {
	idem, err := repo.GetIdempotency(ctx, db, flow.Route, key, p.now().UTC())
	if err != nil {
		return nil, err
	}
	sub, err := repo.GetSubmission(ctx, db, idem.SubmissionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	var rec forms.Record
	if err := json.Unmarshal(sub.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	res := &Result{Submission: sub, Replayed: true, Message: flow.Message}
	res.Data = p.shape(flow, shapeInput{Raw: raw, Record: rec, Submission: sub}, nil)
	return res, nil
}

// Wait drains background notifications; used on shutdown.
func (p *Pipeline) Wait(ctx context.Context) error {
	if p.Notifier == nil {
		return nil
	}
	return p.Notifier.Wait(ctx)
}

func claimKeys(claims []Claim) []string {
	out := make([]string, len(claims))
	for i, c := range claims {
		out[i] = c.Key
	}
	return out
}

// conflict builds the error for the claims whose keys are in taken, in
// claim order.
func conflict(claims []Claim, taken []string) *ConflictError {
	held := make(map[string]struct{}, len(taken))
	for _, k := range taken {
		held[k] = struct{}{}
	}
	ce := &ConflictError{}
	for _, c := range claims {
		if _, ok := held[c.Key]; ok {
			ce.Errors = append(ce.Errors, c.Message)
		}
	}
	if len(ce.Errors) > 0 {
		ce.Message = ce.Errors[0]
	}
	return ce
}

func outcomeFor(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return outcomeConflict
	}
	return outcomeError
}
