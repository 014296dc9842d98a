package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
	"github.com/clubsphere/clubsphere-backend/pkg/tracing"
)

const defaultInterval = time.Minute

// ServiceParams configure the cron service. JobTimeout bounds a single job
// and should stay below the lock TTL so a slow job cannot outlive the lock.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the registered jobs once per interval on whichever instance
// holds the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

type cycleSummary struct {
	ran    int
	failed int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: params.JobTimeout,
	}, nil
}

// Run executes one cycle immediately and then one per tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "cron lock held elsewhere, skipping cycle")
		for _, name := range s.registry.Names() {
			s.metrics.IncSkipped(name)
		}
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	start := time.Now()
	var summary cycleSummary
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.ran++
		if s.runJob(ctx, job) != nil {
			summary.failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        summary.ran,
		"failed":      summary.failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}), "cron cycle complete")
	return nil
}

// runJob reports the job outcome through logs and metrics and returns the
// job error so the cycle can count failures.
func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	jobCtx, span := tracing.Start(jobCtx, "cron.job", attribute.String("cron.job", name))
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
		elapsed := time.Since(start)
		tracing.End(span, err)
		s.metrics.ObserveDuration(name, elapsed)
		doneCtx := s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.metrics.IncFailure(name)
			s.logg.Error(doneCtx, "cron job failed", err)
			return
		}
		s.metrics.IncSuccess(name)
		s.logg.Info(doneCtx, "cron job completed")
	}()

	return job.Run(jobCtx)
}
