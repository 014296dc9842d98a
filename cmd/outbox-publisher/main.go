package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/instance"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/migrate"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/registry"
	"github.com/clubsphere/clubsphere-backend/pkg/pubsub"
	"github.com/clubsphere/clubsphere-backend/pkg/rabbitmq"
	"github.com/clubsphere/clubsphere-backend/pkg/tracing"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg, "outbox-publisher", logg)
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

	brokerSink, closeSink, err := newSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap broker", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeSink(); err != nil {
			logg.Error(context.Background(), "error closing broker", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Sink:       brokerSink,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"broker":      brokerSink.Name(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// newSink connects the broker selected by CLUBSPHERE_OUTBOX_BROKER.
func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (sink, func() error, error) {
	switch cfg.Outbox.Broker {
	case config.OutboxBrokerRabbitMQ:
		publisher, err := rabbitmq.NewPublisher(ctx, cfg.RabbitMQ, logg)
		if err != nil {
			return nil, nil, err
		}
		return newRabbitSink(publisher), publisher.Close, nil
	default:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, nil, err
		}
		return newPubSubSink(client), client.Close, nil
	}
}
