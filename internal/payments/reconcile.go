package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

// ReconcileWindow bounds one pass over pending payments. Payments younger than
// MinAge are left to the client and webhooks; older than Lookback they are no
// longer checked. AbandonAfter, when set, cancels intents still waiting on the
// customer so the payment can be failed without losing a later charge.
type ReconcileWindow struct {
	MinAge       time.Duration
	AbandonAfter time.Duration
	Lookback     time.Duration
	Limit        int
}

// ReconcileSummary counts what one pass over pending payments did.
type ReconcileSummary struct {
	Checked      int
	Settled      int
	Canceled     int
	Failed       int
	Unattached   int
	StillPending int
}

// ReconcilePending asks the gateway about pending payments inside the window
// and settles the ones it has a final answer for. Per-payment errors are
// collected so one bad row does not stop the batch.
func (e *Engine) ReconcilePending(ctx context.Context, window ReconcileWindow) (ReconcileSummary, error) {
	var summary ReconcileSummary
	limit := window.Limit
	if limit <= 0 {
		limit = 100
	}
	now := e.now()
	rows, err := e.repo.ListReconcilable(ctx, now.Add(-window.Lookback), now.Add(-window.MinAge), limit)
	if err != nil {
		return summary, fmt.Errorf("list pending payments: %w", err)
	}

	var errs []error
	for _, payment := range rows {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		summary.Checked++
		intent, err := e.gateway.GetIntent(ctx, payment.ExternalRef)
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
			continue
		}
		if window.AbandonAfter > 0 && intent.Status.Abandonable() && payment.CreatedAt.Before(now.Add(-window.AbandonAfter)) {
			// A refused cancel usually means the customer just paid; the
			// next pass sees the new status.
			intent, err = e.gateway.CancelIntent(ctx, payment.ExternalRef)
			if err != nil {
				errs = append(errs, fmt.Errorf("cancel payment %s: %w", payment.ID, err))
				continue
			}
			summary.Canceled++
		}

		_, err = e.ReconcileIntent(ctx, intent, SourceReconcile)
		switch code := pkgerrors.CodeOf(err); {
		case err == nil:
			summary.Settled++
		case code == pkgerrors.CodePaymentFailed:
			summary.Failed++
		case code == pkgerrors.CodeAlreadyEnrolled || code == pkgerrors.CodeEventFull || code == pkgerrors.CodeAmountMismatch:
			summary.Unattached++
		case code == pkgerrors.CodeStateConflict:
			summary.StillPending++
		default:
			errs = append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
		}
	}
	return summary, multierr.Combine(errs...)
}
