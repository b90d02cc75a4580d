package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird")

	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/")

	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("DB_NAME", "forms")
	t.Setenv("TIMEZONE", "Europe/Dublin")

	t.Setenv("PAYMENT_PROVIDER", "MIDTRANS")
	t.Setenv("CURRENCY", "IDR")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-x")
	t.Setenv("MIDTRANS_PRODUCTION", "1")
	t.Setenv("POSTMARK_SERVER_TOKEN", "pm-token")
	t.Setenv("EMAIL_FROM", "hi@nursery.test")
	t.Setenv("ADMIN_EMAIL", "office@nursery.test")
	t.Setenv("ORG_NAME", "Acorns")

	// unparsable values fall back to defaults
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("IDEMPOTENCY_TTL", "48h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	if cfg.DBPath != "db.sqlite" || cfg.DBName != "forms" || cfg.Timezone != "Europe/Dublin" || cfg.Location().String() != "Europe/Dublin" {
		t.Fatalf("store fields unexpected: %+v", cfg)
	}

	p := cfg.Payment
	if p.Provider != "midtrans" || p.Currency != "idr" || p.MidtransServerKey != "SB-Mid-server-x" || !p.MidtransProduction {
		t.Fatalf("payment unexpected: %+v", p)
	}
	if cfg.Email.PostmarkToken != "pm-token" || cfg.Email.From != "hi@nursery.test" || cfg.Email.Admin != "office@nursery.test" || cfg.Email.MessageStream != "outbound" {
		t.Fatalf("email unexpected: %+v", cfg.Email)
	}
	if cfg.Org.Name != "Acorns" {
		t.Fatalf("org unexpected: %+v", cfg.Org)
	}

	if cfg.RateRPS != 2.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}

	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		env, val, want string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"PORT", "   ", "PORT must not be empty"},
		{"READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"DB_PATH", "   ", "DB_PATH must not be empty"},
		{"TIMEZONE", "Mars/Olympus", "TIMEZONE"},
		{"PAYMENT_PROVIDER", "paypal", "PAYMENT_PROVIDER"},
		{"PAYMENT_PROVIDER", "midtrans", "requires CURRENCY=idr"},
		{"CURRENCY", "pounds", "CURRENCY"},
		{"EMAIL_FROM", "hello", "EMAIL_FROM"},
		{"ADMIN_EMAIL", "office", "ADMIN_EMAIL"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv(tc.env, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("%s=%q: err = %v; want %q", tc.env, tc.val, err, tc.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api" || cfg.GinMode != "release" {
		t.Fatalf("server defaults unexpected: %+v", cfg)
	}
	if cfg.Payment.Provider != "stripe" || cfg.Payment.Currency != "gbp" {
		t.Fatalf("payment defaults unexpected: %+v", cfg.Payment)
	}
	if cfg.Timezone != "Europe/London" || cfg.DBPath != "nursery.db" || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("store defaults unexpected: %+v", cfg)
	}
	if cfg.Email.MessageStream != "outbound" || cfg.OTEL.Enabled {
		t.Fatalf("email/otel defaults unexpected: %+v", cfg)
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	if got := (Config{Timezone: "Nowhere/Nope"}).Location(); got != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", got)
	}
}

func TestGetters(t *testing.T) {
	t.Setenv("CFG_EMPTY", "")
	t.Setenv("CFG_NUM", "42")
	t.Setenv("CFG_FLOAT", "0.5")
	t.Setenv("CFG_DUR", "150ms")
	t.Setenv("CFG_BAD", "nope")

	if getenv("CFG_EMPTY", "d") != "d" || getenv("CFG_NUM", "d") != "42" {
		t.Fatal("getenv")
	}
	if getint("CFG_NUM", 0) != 42 || getint("CFG_BAD", 7) != 7 {
		t.Fatal("getint")
	}
	if getfloat("CFG_FLOAT", 0) != 0.5 || getfloat("CFG_BAD", 1.5) != 1.5 {
		t.Fatal("getfloat")
	}
	if getdur("CFG_DUR", time.Second) != 150*time.Millisecond || getdur("CFG_BAD", time.Second) != time.Second {
		t.Fatal("getdur")
	}
}

func TestGetbool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "TRUE": true, " yes ": true, "Y": true, "on": true,
		"0": false, "False": false, " no ": false, "n": false, "OFF": false,
	}
	for v, want := range cases {
		t.Setenv("CFG_BOOL", v)
		if got := getbool("CFG_BOOL", !want); got != want {
			t.Errorf("getbool(%q) = %v; want %v", v, got, want)
		}
	}
	t.Setenv("CFG_BOOL", "maybe")
	if !getbool("CFG_BOOL", true) {
		t.Error("unrecognized value must fall back to the default")
	}
}

func TestSplitCSV(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatal("empty input should give nil")
	}
	if got := splitCSV(" https://a.test, ,https://b.test ,"); !reflect.DeepEqual(got, []string{"https://a.test", "https://b.test"}) {
		t.Fatalf("got %#v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{"": "/", " / ": "/", "api": "/api", "/api/": "/api", "api/v1/": "/api/v1"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.Port == "" {
		t.Fatal("MustLoad returned empty config")
	}

	t.Setenv("PAYMENT_PROVIDER", "cash")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}
