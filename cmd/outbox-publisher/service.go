package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/registry"
	"github.com/clubsphere/clubsphere-backend/pkg/tracing"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	backoffJitter         = 0.25
	deadLetterKeyPrefix   = "dlq."
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	Repository outboxRepository
	Registry   registryResolver
}

// Service drains outbox_events onto the configured broker. Rows are claimed
// with SKIP LOCKED inside one transaction per batch, so several publishers
// can run side by side.
type Service struct {
	logg            *logger.Logger
	db              dbClient
	repo            outboxRepository
	sink            sink
	registry        registryResolver
	batchSize       int
	maxAttempts     int
	pollInterval    time.Duration
	deadLetterTopic string
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeParked
)

type batchStats struct {
	published int
	retried   int
	parked    int
}

func (b *batchStats) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeParked:
		b.parked++
	}
}

func (b batchStats) total() int { return b.published + b.retried + b.parked }

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("broker sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:            params.Logger,
		db:              params.DB,
		repo:            params.Repository,
		sink:            params.Sink,
		registry:        params.Registry,
		batchSize:       cfg.BatchSize,
		maxAttempts:     cfg.MaxAttempts,
		pollInterval:    time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		deadLetterTopic: params.Config.PubSub.DLQTopic,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	return svc, nil
}

// Run publishes until ctx ends. A full batch is followed immediately by the
// next one; an empty batch waits one poll interval and a failed one backs
// off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	retry := s.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		stats, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = retry.NextBackOff()
		case stats.total() > 0:
			retry.Reset()
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"published": stats.published,
				"retried":   stats.retried,
				"parked":    stats.parked,
			}), "outbox batch drained")
			continue
		default:
			retry.Reset()
			wait = s.pollInterval
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.pollInterval
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = backoffJitter
	b.Reset()
	return b
}

func (s *Service) checkDependencies(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{s.sink.Name(), s.sink.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			result, err := s.publishOne(ctx, tx, event)
			if err != nil {
				return err
			}
			stats.add(result)
		}
		return nil
	})
	return stats, err
}

// publishOne only returns an error when the row's new state could not be
// written; broker failures are recorded on the row instead.
func (s *Service) publishOne(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeParked, s.park(ctx, tx, event, nil, "non_retryable", err)
	}

	spanCtx, span := tracing.Start(ctx, "outbox.publish",
		attribute.String("outbox.event_type", string(event.EventType)),
		attribute.String("outbox.aggregate_id", event.AggregateID.String()),
		attribute.String("messaging.system", s.sink.Name()),
	)
	pubErr := s.send(spanCtx, s.message(event, resolved.Envelope, resolved.Descriptor.Topic, resolved.Descriptor.RoutingKey))
	tracing.End(span, pubErr)

	switch {
	case pubErr == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, s.eventFields(event, resolved)), "outbox event published")
		return outcomePublished, nil
	case registry.IsNonRetryable(pubErr):
		return outcomeParked, s.park(ctx, tx, event, resolved, "non_retryable", pubErr)
	case event.AttemptCount+1 >= s.maxAttempts:
		return outcomeParked, s.park(ctx, tx, event, resolved, "max_attempts", fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	fields := s.eventFields(event, resolved)
	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// park marks a row that will never publish. With a dead-letter topic the raw
// payload is forwarded first; a failed forward is logged and the row is
// parked anyway.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent, reason string, cause error) error {
	fields := s.eventFields(event, resolved)
	fields["terminal_reason"] = reason
	fields["error"] = cause.Error()
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Warn(logCtx, "outbox event will not be retried")

	if s.deadLetterTopic != "" {
		msg := s.message(event, outbox.PayloadEnvelope{EventID: event.ID.String()}, s.deadLetterTopic, deadLetterKeyPrefix+string(event.EventType))
		msg.Attributes["terminal_reason"] = reason
		msg.Attributes["error"] = cause.Error()
		if err := s.send(ctx, msg); err != nil {
			s.logg.Error(logCtx, "dead-letter publish failed", err)
		}
	}

	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) send(ctx context.Context, msg brokerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.sink.Publish(ctx, msg)
}

func (s *Service) message(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic, routingKey string) brokerMessage {
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	if envelope.RequestID != "" {
		attrs["request_id"] = envelope.RequestID
	}
	if envelope.TraceID != "" {
		attrs["trace_id"] = envelope.TraceID
	}
	return brokerMessage{
		Topic:       topic,
		RoutingKey:  routingKey,
		OrderingKey: event.AggregateID.String(),
		MessageID:   envelope.EventID,
		Body:        event.Payload,
		Timestamp:   event.CreatedAt,
		Attributes:  attrs,
	}
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"broker":         s.sink.Name(),
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	if resolved == nil {
		return fields
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if resolved.Descriptor.Topic != "" {
		fields["topic"] = resolved.Descriptor.Topic
	}
	if resolved.Descriptor.RoutingKey != "" {
		fields["routing_key"] = resolved.Descriptor.RoutingKey
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
