package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		opts   SecurityOptions
		tls    bool
		proto  string
		expose string
		want   map[string]string
	}{
		{
			name: "baseline",
			opts: SecurityOptions{},
			want: map[string]string{
				"X-Content-Type-Options":        "nosniff",
				"X-Frame-Options":               "DENY",
				"Referrer-Policy":               "no-referrer",
				"Cache-Control":                 "",
				"Strict-Transport-Security":     "",
				"Access-Control-Expose-Headers": "X-Request-ID",
			},
		},
		{
			name: "no-store and policy",
			opts: SecurityOptions{NoStore: true, EnablePolicy: true},
			want: map[string]string{
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
				"X-Permitted-Cross-Domain-Policies": "none",
			},
		},
		{
			name: "hsts over tls",
			opts: SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour},
			tls:  true,
			want: map[string]string{"Strict-Transport-Security": "max-age=86400; includeSubDomains; preload"},
		},
		{
			name:  "hsts via proxy default age",
			opts:  SecurityOptions{EnableHSTS: true},
			proto: "https",
			want:  map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name: "no hsts over plain http",
			opts: SecurityOptions{EnableHSTS: true},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:   "append to existing expose list",
			opts:   SecurityOptions{},
			expose: "Idempotency-Replayed",
			want:   map[string]string{"Access-Control-Expose-Headers": "Idempotency-Replayed, X-Request-ID"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Header(requestIDHeader, "rid")
				if tc.expose != "" {
					c.Header("Access-Control-Expose-Headers", tc.expose)
				}
				c.Next()
			})
			r.Use(SecurityHeaders(tc.opts))
			r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s=%q want %q", k, got, v)
				}
			}
		})
	}
}
