// Command server runs the nursery forms API.
//
// @title           Nursery Forms API
// @version         1.0
// @description     Accepts the nursery website's forms, stores them, starts deposit and club payments and sends confirmation emails.
// @BasePath        /api
// @schemes         http https
// @accept          json
// @produce         json
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/config"
	"github.com/tbourn/nursery-backend/internal/forms"
	httpapi "github.com/tbourn/nursery-backend/internal/http"
	"github.com/tbourn/nursery-backend/internal/http/handlers"
	"github.com/tbourn/nursery-backend/internal/notify"
	"github.com/tbourn/nursery-backend/internal/observability"
	"github.com/tbourn/nursery-backend/internal/payment"
	"github.com/tbourn/nursery-backend/internal/pdfdoc"
	"github.com/tbourn/nursery-backend/internal/repo"
	"github.com/tbourn/nursery-backend/internal/services"
	"github.com/tbourn/nursery-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, "dev"))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// The database opens on first use so the process starts even when the
	// volume is not mounted yet; /health stays up regardless.
	store := repo.NewLazy(func(ctx context.Context) (*gorm.DB, error) {
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, err
		}
		if cfg.OTEL.Enabled {
			if err := observability.InstrumentGORM(db, cfg.DBName); err != nil {
				log.Warn().Err(err).Msg("gorm tracing disabled")
			}
		}
		log.Info().Str("path", cfg.DBPath).Msg("database ready")
		return db, nil
	})

	tpl, err := notify.LoadTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("load email templates")
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.Email.PostmarkToken != "" {
		sender = notify.NewPostmark(cfg.Email.PostmarkToken, cfg.Email.MessageStream)
	} else {
		log.Warn().Msg("POSTMARK_SERVER_TOKEN not set, emails are logged only")
	}

	loc := cfg.Location()
	pipe := &services.Pipeline{
		Store:     store,
		Validator: forms.New(time.Now, loc),
		Payments: payment.New(payment.Options{
			Provider:           cfg.Payment.Provider,
			StripeSecretKey:    cfg.Payment.StripeSecretKey,
			MidtransServerKey:  cfg.Payment.MidtransServerKey,
			MidtransProduction: cfg.Payment.MidtransProduction,
		}),
		Notifier: notify.New(sender, tpl, notify.Options{
			From:  cfg.Email.From,
			Admin: cfg.Email.Admin,
			Org: notify.Org{
				Name:    cfg.Org.Name,
				Address: cfg.Org.Address,
				Phone:   cfg.Org.Phone,
				Email:   cfg.Org.Email,
				Website: cfg.Org.Website,
			},
		}),
		Renderer:       pdfdoc.NewRenderer(pdfOrg(cfg.Org), loc),
		Currency:       cfg.Payment.Currency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Location:       loc,
	}
	reconciler := &services.Reconciler{
		Store:   store,
		Webhook: payment.StripeWebhook{Secret: cfg.Payment.StripeWebhookSecret},
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Submitter: pipe,
		Webhooks:  reconciler,
		Store:     store,
		PaymentsUI: handlers.PaymentsConfig{
			Provider:       pipe.Payments.Provider(),
			Currency:       cfg.Payment.Currency,
			PublishableKey: cfg.Payment.StripePublishableKey,
		},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("payments", pipe.Payments.Provider()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Background emails started before shutdown still go out.
	if err := pipe.Wait(shCtx); err != nil {
		log.Warn().Err(err).Msg("pending emails not flushed")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
}

func pdfOrg(o config.OrgConfig) pdfdoc.Org {
	return pdfdoc.Org{
		Name:     o.Name,
		Address:  o.Address,
		Phone:    o.Phone,
		Email:    o.Email,
		Website:  o.Website,
		LogoPath: o.LogoPath,
	}
}
