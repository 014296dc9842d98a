package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/clubsphere/clubsphere-backend/api/routes"
	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/dashboard"
	"github.com/clubsphere/clubsphere-backend/internal/events"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	stripewebhook "github.com/clubsphere/clubsphere-backend/internal/webhooks/stripe"
	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/instance"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
	"github.com/clubsphere/clubsphere-backend/pkg/migrate"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/redis"
	pkgstripe "github.com/clubsphere/clubsphere-backend/pkg/stripe"
	"github.com/clubsphere/clubsphere-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg, "api", logg)
	if err != nil {
		logg.Error(context.Background(), "failed to set up tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	stripeGateway, err := payments.NewStripeGateway(stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe gateway", err)
		os.Exit(1)
	}
	gateway, err := payments.NewGuardedGateway(stripeGateway, cfg.Payments, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to guard payment gateway", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	clubRepo := clubs.NewRepository(conn)
	eventRepo := events.NewRepository(conn)
	membershipRepo := memberships.NewRepository(conn)
	registrationRepo := registrations.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)

	engine, err := payments.NewEngine(payments.EngineParams{
		Repo:           paymentRepo,
		Clubs:          clubRepo,
		Events:         eventRepo,
		Memberships:    membershipRepo,
		Registrations:  registrationRepo,
		Gateway:        gateway,
		Tx:             dbClient,
		Outbox:         outboxService,
		Logger:         logg,
		Metrics:        paymentMetrics,
		Currency:       cfg.Payments.Currency,
		MembershipTerm: cfg.Members.Term,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment engine", err)
		os.Exit(1)
	}

	clubService, err := clubs.NewService(clubs.ServiceParams{Repo: clubRepo, Tx: dbClient, Outbox: outboxService})
	if err != nil {
		logg.Error(context.Background(), "failed to create club service", err)
		os.Exit(1)
	}

	eventService, err := events.NewService(events.ServiceParams{Repo: eventRepo, Clubs: clubRepo, Tx: dbClient})
	if err != nil {
		logg.Error(context.Background(), "failed to create event service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(memberships.ServiceParams{
		Repo:     membershipRepo,
		Clubs:    clubRepo,
		Payments: engine,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Term:     cfg.Members.Term,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	registrationService, err := registrations.NewService(registrations.ServiceParams{
		Repo:     registrationRepo,
		Events:   eventRepo,
		Clubs:    clubRepo,
		Payments: engine,
		Tx:       dbClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create registration service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dashboard.ServiceParams{
		Repo:          dashboard.NewRepository(conn),
		Clubs:         clubRepo,
		Memberships:   membershipService,
		Registrations: registrationService,
		Payments:      paymentRepo,
		Currency:      cfg.Payments.Currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: engine, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:            dbClient,
			Cache:         redisClient,
			Metrics:       registry,
			Clubs:         clubService,
			Events:        eventService,
			Memberships:   membershipService,
			Registrations: registrationService,
			Payments:      engine,
			Dashboard:     dashboardService,
			StripeClient:  stripeClient,
			StripeWebhook: webhookService,
			WebhookGuard:  webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
