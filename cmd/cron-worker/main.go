package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/cron"
	"github.com/clubsphere/clubsphere-backend/internal/events"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg, "cron-worker", logg)
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

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
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)
	clubRepo := clubs.NewRepository(conn)
	membershipRepo := memberships.NewRepository(conn)

	engine, err := payments.NewEngine(payments.EngineParams{
		Repo:           payments.NewRepository(conn),
		Clubs:          clubRepo,
		Events:         events.NewRepository(conn),
		Memberships:    membershipRepo,
		Registrations:  registrations.NewRepository(conn),
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

	expiryJob, err := cron.NewMembershipExpiryJob(cron.MembershipExpiryJobParams{
		Logger:      logg,
		Memberships: membershipService,
		Metrics:     cronMetrics,
		BatchSize:   cfg.Cron.ExpiryBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership expiry job", err)
		os.Exit(1)
	}
	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:       logg,
		Reconciler:   engine,
		Metrics:      cronMetrics,
		BatchSize:    cfg.Cron.ReconcileBatchSize,
		MinAge:       cfg.Cron.ReconcileMinAge,
		AbandonAfter: cfg.Cron.ReconcileAbandon,
		Lookback:     cfg.Cron.ReconcileLookback,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconcile job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:          logg,
		DB:              dbClient,
		Repository:      outboxRepo,
		Metrics:         cronMetrics,
		Retention:       cfg.Outbox.Retention,
		ParkedRetention: cfg.Outbox.ParkedRetention,
		MaxAttempts:     cfg.Outbox.MaxAttempts,
		BatchSize:       cfg.Outbox.RetentionBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", lockScope(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	jobs, err := cron.NewRegistry(expiryJob, reconcileJob, retentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
