package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

const (
	paymentReconcileJobName  = "payment-reconcile"
	defaultReconcileBatch    = 100
	defaultReconcileMinAge   = 10 * time.Minute
	defaultReconcileLookback = 7 * 24 * time.Hour
)

type pendingReconciler interface {
	ReconcilePending(ctx context.Context, window payments.ReconcileWindow) (payments.ReconcileSummary, error)
}

type PaymentReconcileJobParams struct {
	Logger       *logger.Logger
	Reconciler   pendingReconciler
	Metrics      *metrics.CronJobMetrics
	BatchSize    int
	MinAge       time.Duration
	AbandonAfter time.Duration
	Lookback     time.Duration
}

// NewPaymentReconcileJob builds the job that settles pending payments the
// client never confirmed and no webhook resolved. AbandonAfter of zero never
// cancels intents; otherwise it has to fall inside the lookback.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payment engine required")
	}
	window := payments.ReconcileWindow{
		MinAge:       params.MinAge,
		AbandonAfter: params.AbandonAfter,
		Lookback:     params.Lookback,
		Limit:        params.BatchSize,
	}
	if window.Limit <= 0 {
		window.Limit = defaultReconcileBatch
	}
	if window.MinAge <= 0 {
		window.MinAge = defaultReconcileMinAge
	}
	if window.Lookback <= window.MinAge {
		window.Lookback = defaultReconcileLookback
	}
	if window.AbandonAfter < 0 {
		window.AbandonAfter = 0
	}
	if window.AbandonAfter > 0 && (window.AbandonAfter <= window.MinAge || window.AbandonAfter >= window.Lookback) {
		return nil, fmt.Errorf("abandon-after %s must fall between min age %s and lookback %s", window.AbandonAfter, window.MinAge, window.Lookback)
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		window:     window,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	reconciler pendingReconciler
	metrics    *metrics.CronJobMetrics
	window     payments.ReconcileWindow
}

func (j *paymentReconcileJob) Name() string { return paymentReconcileJobName }

// Run reports partial progress even when some payments failed to reconcile.
func (j *paymentReconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.ReconcilePending(ctx, j.window)
	j.metrics.AddProcessed(j.Name(), summary.Settled+summary.Failed+summary.Unattached)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":       summary.Checked,
		"settled":       summary.Settled,
		"canceled":      summary.Canceled,
		"failed":        summary.Failed,
		"unattached":    summary.Unattached,
		"still_pending": summary.StillPending,
	})
	if err != nil {
		return fmt.Errorf("payment reconcile: %w", err)
	}
	j.logg.Info(logCtx, "payment reconciliation complete")
	return nil
}
