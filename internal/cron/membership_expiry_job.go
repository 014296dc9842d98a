package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

const (
	membershipExpiryJobName  = "membership-expiry"
	defaultExpiryBatchSize   = 500
	maxExpiryBatchesPerCycle = 20
)

type membershipSweeper interface {
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

type MembershipExpiryJobParams struct {
	Logger      *logger.Logger
	Memberships membershipSweeper
	Metrics     *metrics.CronJobMetrics
	BatchSize   int
}

// NewMembershipExpiryJob builds the job that expires memberships whose term ended.
func NewMembershipExpiryJob(params MembershipExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("membership service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &membershipExpiryJob{
		logg:        params.Logger,
		memberships: params.Memberships,
		metrics:     params.Metrics,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type membershipExpiryJob struct {
	logg        *logger.Logger
	memberships membershipSweeper
	metrics     *metrics.CronJobMetrics
	batch       int
	now         func() time.Time
}

func (j *membershipExpiryJob) Name() string { return membershipExpiryJobName }

// Run sweeps in batches until a batch comes back short. The cutoff is fixed at
// the start so rows lapsing mid-run wait for the next cycle.
func (j *membershipExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	total := 0
	for i := 0; i < maxExpiryBatchesPerCycle; i++ {
		n, err := j.memberships.SweepExpired(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			j.metrics.AddProcessed(j.Name(), total)
			return fmt.Errorf("membership expiry: %w", err)
		}
		if n < j.batch {
			break
		}
	}
	j.metrics.AddProcessed(j.Name(), total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": total,
	})
	j.logg.Info(logCtx, "membership expiry sweep complete")
	return nil
}
