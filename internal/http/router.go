// Package httpapi wires the Gin transport to the submission pipeline and
// payment reconciliation, together with the cross-cutting middleware:
// tracing, correlation IDs, redacting logs, panic recovery, metrics,
// idempotency, rate limiting, CORS, compression and security headers.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/nursery-backend/docs"
	"github.com/tbourn/nursery-backend/internal/config"
	"github.com/tbourn/nursery-backend/internal/http/handlers"
	"github.com/tbourn/nursery-backend/internal/http/middleware"
	"github.com/tbourn/nursery-backend/internal/repo"
	"github.com/tbourn/nursery-backend/internal/services"
)

// maxBodyBytes caps every request body. Forms are small JSON objects; the
// largest (registration) stays well under this.
const maxBodyBytes = 1 << 20

// Deps are the application services behind the routes.
type Deps struct {
	Submitter  handlers.Submitter
	Webhooks   handlers.WebhookHandler // nil when payments are disabled
	Store      services.Store          // idempotency lookups
	PaymentsUI handlers.PaymentsConfig
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter (per client IP and route)
//  9. CORS, gzip and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(deps.Store, apiBase),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIPAndRoute())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Submitter, deps.Webhooks, deps.PaymentsUI)

	api := groupWithPrefix(r, apiBase)
	{
		for _, f := range services.Flows() {
			api.POST(f.Route, h.Submit(f))
		}
		api.POST("/webhooks/stripe", h.StripeWebhook)
		api.GET("/config/payments", h.PaymentsConfig)
	}
}

// idempotencyLookup reports whether (route, key) already produced a
// submission. Stored routes are relative to the API base. Lookup failures
// read as a miss; the pipeline repeats the lookup on the same store.
func idempotencyLookup(store services.Store, apiBase string) middleware.IdempotencyLookup {
	if store == nil {
		return nil
	}
	return func(ctx context.Context, route, key string, now time.Time) (bool, error) {
		db, err := store.Get(ctx)
		if err != nil {
			return false, err
		}
		rel := route
		if apiBase != "/" {
			rel = strings.TrimPrefix(route, apiBase)
		}
		rec, err := repo.GetIdempotency(ctx, db, rel, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when none is configured, otherwise
// echoes allow-listed origins only.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey, "X-Request-ID"}
	expose := []string{"X-Request-ID", handlers.HeaderReplayed, "Content-Length"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, for health checks.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    methods,
				AllowHeaders:    headers,
				ExposeHeaders:   expose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  methods,
			AllowHeaders:  headers,
			ExposeHeaders: expose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
