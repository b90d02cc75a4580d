package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/http/middleware"
	"github.com/tbourn/nursery-backend/internal/services"
)

type fakeSubmitter struct {
	res  *services.Result
	err  error
	typ  domain.SubmissionType
	raw  map[string]any
	meta services.Meta
}

func (f *fakeSubmitter) Submit(_ context.Context, typ domain.SubmissionType, raw map[string]any, meta services.Meta) (*services.Result, error) {
	f.typ, f.raw, f.meta = typ, raw, meta
	return f.res, f.err
}

type fakeWebhooks struct {
	rec     *services.Reconciliation
	err     error
	payload string
	sig     string
}

func (f *fakeWebhooks) HandleWebhook(_ context.Context, payload []byte, sig string) (*services.Reconciliation, error) {
	f.payload, f.sig = string(payload), sig
	return f.rec, f.err
}

func visitFlow(t *testing.T) services.Flow {
	t.Helper()
	f, err := services.LookupFlow(domain.TypeVisitBooking)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func newRouter(h *Handlers, flow services.Flow) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/api"+flow.Route, h.Submit(flow))
	r.POST("/api/webhooks/stripe", h.StripeWebhook)
	r.GET("/api/config/payments", h.PaymentsConfig)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestSubmit_Created(t *testing.T) {
	flow := visitFlow(t)
	sub := &fakeSubmitter{res: &services.Result{
		Message: "Visit booked successfully",
		Data:    map[string]any{"bookingId": "b-1", "visitDate": "2025-06-10"},
	}}
	r := newRouter(New(sub, nil, PaymentsConfig{}), flow)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"parentName":"Jo","count":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(middleware.HeaderIdempotencyKey, "k-1")
	req.Header.Set("X-Request-ID", "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["message"] != "Visit booked successfully" {
		t.Fatalf("body=%v", body)
	}
	data := body["data"].(map[string]any)
	if data["bookingId"] != "b-1" || data["visitDate"] != "2025-06-10" {
		t.Fatalf("data=%v", data)
	}
	if sub.typ != domain.TypeVisitBooking || sub.raw["parentName"] != "Jo" || sub.raw["count"] != float64(2) {
		t.Fatalf("submitter got typ=%s raw=%v", sub.typ, sub.raw)
	}
	if sub.meta != (services.Meta{UserAgent: "test-agent", IdempotencyKey: "k-1", RequestID: "rid-1"}) {
		t.Fatalf("meta=%+v", sub.meta)
	}
	if w.Header().Get(HeaderReplayed) != "" {
		t.Fatal("fresh submission marked as replay")
	}
}

func TestSubmit_ReplayHeader(t *testing.T) {
	flow := visitFlow(t)
	sub := &fakeSubmitter{res: &services.Result{Replayed: true, Message: "ok", Data: map[string]any{}}}
	r := newRouter(New(sub, nil, PaymentsConfig{}), flow)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{}`)))
	if w.Code != http.StatusCreated || w.Header().Get(HeaderReplayed) != "true" {
		t.Fatalf("status=%d replayed=%q", w.Code, w.Header().Get(HeaderReplayed))
	}
}

func TestSubmit_BadBody(t *testing.T) {
	flow := visitFlow(t)
	sub := &fakeSubmitter{}
	r := newRouter(New(sub, nil, PaymentsConfig{}), flow)

	for _, b := range []string{`not json`, `[1,2]`, `null`, ``} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(b)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: status=%d", b, w.Code)
		}
		if decode(t, w)["code"] != ErrCodeBadRequest {
			t.Fatalf("%q: body=%s", b, w.Body.String())
		}
	}
	if sub.typ != "" {
		t.Fatal("submitter must not run on a bad body")
	}
}

func TestSubmit_ErrorMapping(t *testing.T) {
	flow := visitFlow(t)
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		message  string
		errors   int
		noDetail string
	}{
		{"validation", &services.ValidationError{Errors: []string{"Email is invalid", "Visit date is required"}},
			http.StatusBadRequest, ErrCodeValidation, "Validation failed", 2, ""},
		{"conflict", &services.ConflictError{Message: "This time slot is already booked", Errors: []string{"This time slot is already booked"}},
			http.StatusConflict, ErrCodeConflict, "This time slot is already booked", 1, ""},
		{"unknown form", services.ErrUnknownForm, http.StatusNotFound, ErrCodeNotFound, "Unknown form", 0, ""},
		{"payments off", services.ErrPaymentUnavailable, http.StatusServiceUnavailable, ErrCodePaymentUnavailable, msgPaymentsOff, 0, ""},
		{"payment failed", errors.Join(services.ErrPaymentFailed, errors.New("card_declined sk_live_x")),
			http.StatusInternalServerError, ErrCodePaymentFailed, msgPayment, 0, "sk_live_x"},
		{"internal", errors.New("database is locked"), http.StatusInternalServerError, ErrCodeInternal, msgInternal, 0, "locked"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(New(&fakeSubmitter{err: tc.err}, nil, PaymentsConfig{}), flow)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"a":1}`)))

			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			body := decode(t, w)
			if body["success"] != false || body["code"] != tc.code || body["message"] != tc.message {
				t.Fatalf("body=%v", body)
			}
			errs, _ := body["errors"].([]any)
			if len(errs) != tc.errors {
				t.Fatalf("errors=%v", errs)
			}
			if tc.noDetail != "" && strings.Contains(w.Body.String(), tc.noDetail) {
				t.Fatalf("internal detail leaked: %s", w.Body.String())
			}
		})
	}
}

func TestStripeWebhook(t *testing.T) {
	flow := visitFlow(t)
	tests := []struct {
		name   string
		hooks  *fakeWebhooks
		status int
	}{
		{"applied", &fakeWebhooks{rec: &services.Reconciliation{EventID: "evt_1", Applied: true}}, http.StatusOK},
		{"duplicate", &fakeWebhooks{rec: &services.Reconciliation{EventID: "evt_1", Duplicate: true}}, http.StatusOK},
		{"bad signature", &fakeWebhooks{err: services.ErrWebhookSignature}, http.StatusBadRequest},
		{"unavailable", &fakeWebhooks{err: services.ErrPaymentUnavailable}, http.StatusServiceUnavailable},
		{"store failure", &fakeWebhooks{err: errors.New("disk full")}, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(New(&fakeSubmitter{}, tc.hooks, PaymentsConfig{}), flow)
			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			if tc.hooks.payload != `{"id":"evt_1"}` || tc.hooks.sig != "t=1,v1=abc" {
				t.Fatalf("payload=%q sig=%q", tc.hooks.payload, tc.hooks.sig)
			}
			if tc.status == http.StatusOK {
				body := decode(t, w)
				if body["received"] != true || body["eventId"] != "evt_1" || body["duplicate"] != tc.hooks.rec.Duplicate {
					t.Fatalf("body=%v", body)
				}
			}
		})
	}
}

func TestStripeWebhook_NoReconciler(t *testing.T) {
	r := newRouter(New(&fakeSubmitter{}, nil, PaymentsConfig{}), visitFlow(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`)))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPaymentsConfig(t *testing.T) {
	cfg := PaymentsConfig{Provider: "stripe", Currency: "gbp", PublishableKey: "pk_test_1"}
	r := newRouter(New(&fakeSubmitter{}, nil, cfg), visitFlow(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config/payments", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decode(t, w)
	if body["provider"] != "stripe" || body["currency"] != "gbp" || body["publishableKey"] != "pk_test_1" {
		t.Fatalf("body=%v", body)
	}
}
