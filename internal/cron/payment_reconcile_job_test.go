package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubsphere/clubsphere-backend/internal/payments"
)

type fakeReconciler struct {
	summary payments.ReconcileSummary
	err     error
	window  payments.ReconcileWindow
}

func (f *fakeReconciler) ReconcilePending(_ context.Context, window payments.ReconcileWindow) (payments.ReconcileSummary, error) {
	f.window = window
	return f.summary, f.err
}

func TestPaymentReconcileJobDefaults(t *testing.T) {
	rec := &fakeReconciler{summary: payments.ReconcileSummary{Checked: 3, Settled: 2, StillPending: 1}}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{Logger: testLogger(), Reconciler: rec})
	if err != nil {
		t.Fatalf("NewPaymentReconcileJob: %v", err)
	}
	if job.Name() != "payment-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := payments.ReconcileWindow{MinAge: defaultReconcileMinAge, Lookback: defaultReconcileLookback, Limit: defaultReconcileBatch}
	if rec.window != want {
		t.Fatalf("unexpected window %+v", rec.window)
	}
}

func TestPaymentReconcileJobUsesConfiguredWindow(t *testing.T) {
	rec := &fakeReconciler{}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:       testLogger(),
		Reconciler:   rec,
		BatchSize:    10,
		MinAge:       time.Minute,
		AbandonAfter: 30 * time.Minute,
		Lookback:     time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPaymentReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := payments.ReconcileWindow{MinAge: time.Minute, AbandonAfter: 30 * time.Minute, Lookback: time.Hour, Limit: 10}
	if rec.window != want {
		t.Fatalf("unexpected window %+v", rec.window)
	}
}

func TestPaymentReconcileJobRejectsAbandonOutsideWindow(t *testing.T) {
	for _, abandon := range []time.Duration{time.Minute, 2 * time.Hour} {
		_, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
			Logger:       testLogger(),
			Reconciler:   &fakeReconciler{},
			MinAge:       5 * time.Minute,
			AbandonAfter: abandon,
			Lookback:     time.Hour,
		})
		if err == nil {
			t.Fatalf("expected abandon-after %s to be rejected", abandon)
		}
	}
}

func TestPaymentReconcileJobReportsPartialFailure(t *testing.T) {
	rec := &fakeReconciler{
		summary: payments.ReconcileSummary{Checked: 2, Settled: 1},
		err:     errors.New("payment x: gateway unavailable"),
	}
	job, _ := NewPaymentReconcileJob(PaymentReconcileJobParams{Logger: testLogger(), Reconciler: rec})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewPaymentReconcileJobRequiresReconciler(t *testing.T) {
	if _, err := NewPaymentReconcileJob(PaymentReconcileJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error")
	}
}
