// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartqr-backend/internal/config"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/infra/adapters/document"
	"smartqr-backend/internal/infra/adapters/mail"
	payAdapters "smartqr-backend/internal/infra/adapters/payment"
	"smartqr-backend/internal/infra/adapters/storage"
	"smartqr-backend/internal/infra/api"
	"smartqr-backend/internal/infra/db/migrations"
	pg "smartqr-backend/internal/infra/db/postgres"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
	red "smartqr-backend/internal/infra/redis"
	"smartqr-backend/internal/infra/security"
	"smartqr-backend/internal/infra/worker"
	"smartqr-backend/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (fake payment provider, log mailer)")
	migrate := flag.Bool("migrate", true, "apply pending migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if *migrate {
		if err := migrations.Up(ctx, cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis (optional) ----
	var (
		limiter api.Limiter
		locker  red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis not configured: throttling and webhook locks disabled")
	}

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	candidateRepo := pg.NewCandidateRepo(pool)
	eventRepo := pg.NewEventRepo(pool)
	accessCodeRepo := pg.NewAccessCodeRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	sessionRepo := pg.NewPaymentSessionRepo(pool)
	entitlementRepo := pg.NewEntitlementRepo(pool)
	portfolioRepo := pg.NewPortfolioRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	var provider adapter.PaymentProvider
	if cfg.Runtime.Dev {
		provider = payAdapters.NewNoopPaymentGateway(cfg.Stripe.WebhookSecret)
	} else {
		provider, err = payAdapters.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe gateway")
		}
	}
	logger.Info().Str("provider", provider.Name()).Msg("payment provider ready")

	objects, err := storage.NewR2Storage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage")
	}

	var mailer adapter.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail, logger)
	} else {
		mailer = mail.NewLogMailer(logger)
	}

	tasks := worker.NewPool(cfg.Mail.Workers, logger)
	tasks.Start(ctx)
	defer tasks.Stop()

	composer := document.NewLimitedComposer(document.NewPdfcpuComposer(), cfg.PDF.MaxConcurrent)
	hasher := security.NewAccessCodeHasher(cfg.Security.AccessCodeCost)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(userRepo, paymentRepo, sessionRepo, txManager, provider, usecase.PaymentSettings{
		Host:               cfg.HTTP.Host,
		SuccessPath:        cfg.Stripe.SuccessPath,
		CancelPath:         cfg.Stripe.CancelPath,
		PortalReturnURL:    cfg.Stripe.PortalReturnURL,
		SubscriptionAmount: cfg.Stripe.SubscriptionAmount,
		Currency:           cfg.Stripe.Currency,
	}, logger)
	webhookUC := usecase.NewWebhookUseCase(paymentRepo, sessionRepo, candidateRepo, entitlementRepo, txManager, provider, locker, logger)
	pdfUC := usecase.NewPDFQRUseCase(candidateRepo, composer, document.NewQRRenderer(), cfg.PDF.MaxFiles, logger)
	accessUC := usecase.NewAccessUseCase(eventRepo, candidateRepo, accessCodeRepo, hasher, logger)
	profileUC := usecase.NewProfileUseCase(
		userRepo, candidateRepo, paymentRepo, entitlementRepo, portfolioRepo, txManager,
		paymentUC, usecase.NewExemptionPolicy(cfg.ExemptedEmails), mailer, tasks, logger,
	)
	mediaUC := usecase.NewMediaUseCase(candidateRepo, objects, logger)

	// ---- HTTP ----
	srv, err := api.NewServer(api.Deps{
		Payments: paymentUC,
		Webhooks: webhookUC,
		PDFQR:    pdfUC,
		Access:   accessUC,
		Profiles: profileUC,
		Media:    mediaUC,
		Auth:     api.NewAuthManager(cfg.Security.JWTSecret, 24*time.Hour),
		Limiter:  limiter,
		Throttle: cfg.Throttle,
		HTTP:     cfg.HTTP,
		Ready:    func(ctx context.Context) error { return pool.Ping(ctx) },
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}
