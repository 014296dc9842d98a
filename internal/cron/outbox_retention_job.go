package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

const (
	outboxRetentionJobName    = "outbox-retention"
	defaultOutboxRetention    = 30 * 24 * time.Hour
	defaultParkedRetention    = 90 * 24 * time.Hour
	defaultRetentionBatch     = 1000
	maxRetentionBatchesPerRun = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
	DeleteParkedBefore(tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) (int64, error)
}

// OutboxRetentionJobParams configure outbox pruning. Published rows go after
// Retention. Rows parked at MaxAttempts stay for ParkedRetention so operators
// can inspect them, and are kept forever when MaxAttempts is zero.
type OutboxRetentionJobParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Repository      outboxPruner
	Metrics         *metrics.CronJobMetrics
	Retention       time.Duration
	ParkedRetention time.Duration
	MaxAttempts     int
	BatchSize       int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:            params.Logger,
		db:              params.DB,
		repo:            params.Repository,
		metrics:         params.Metrics,
		retention:       params.Retention,
		parkedRetention: params.ParkedRetention,
		maxAttempts:     params.MaxAttempts,
		batchSize:       params.BatchSize,
		now:             time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.parkedRetention <= 0 {
		job.parkedRetention = defaultParkedRetention
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultRetentionBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg            *logger.Logger
	db              txRunner
	repo            outboxPruner
	metrics         *metrics.CronJobMetrics
	retention       time.Duration
	parkedRetention time.Duration
	maxAttempts     int
	batchSize       int
	now             func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.Add(-j.retention)
	published, err := j.prune(ctx, func(tx *gorm.DB) (int64, error) {
		return j.repo.DeletePublishedBefore(tx, publishedCutoff, j.batchSize)
	})
	if err != nil {
		return fmt.Errorf("prune published outbox rows: %w", err)
	}

	var parked int64
	parkedCutoff := now.Add(-j.parkedRetention)
	if j.maxAttempts > 0 {
		parked, err = j.prune(ctx, func(tx *gorm.DB) (int64, error) {
			return j.repo.DeleteParkedBefore(tx, parkedCutoff, j.maxAttempts, j.batchSize)
		})
		if err != nil {
			return fmt.Errorf("prune parked outbox rows: %w", err)
		}
	}

	j.metrics.AddProcessed(j.Name(), int(published+parked))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff": publishedCutoff,
		"parked_cutoff":    parkedCutoff,
		"published_pruned": published,
		"parked_pruned":    parked,
	}), "outbox retention complete")
	return nil
}

// prune runs deleteBatch in its own transaction until a batch comes back
// short, keeping each delete small enough not to stall the publisher.
func (j *outboxRetentionJob) prune(ctx context.Context, deleteBatch func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for batch := 0; batch < maxRetentionBatchesPerRun; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = deleteBatch(tx)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batchSize) {
			return total, nil
		}
	}
	j.logg.Warn(j.logg.WithField(ctx, "deleted", total), "outbox retention hit the per-run batch cap")
	return total, nil
}
