package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

type fakeSweeper struct {
	batches []int
	err     error
	calls   int
	cutoffs []time.Time
}

func (f *fakeSweeper) SweepExpired(_ context.Context, now time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, now)
	idx := f.calls
	f.calls++
	if f.err != nil && idx == len(f.batches) {
		return 0, f.err
	}
	if idx >= len(f.batches) {
		return 0, nil
	}
	return f.batches[idx], nil
}

func newMembershipExpiryJob(t *testing.T, sweeper *fakeSweeper, m *metrics.CronJobMetrics) *membershipExpiryJob {
	t.Helper()
	jobIface, err := NewMembershipExpiryJob(MembershipExpiryJobParams{
		Logger:      testLogger(),
		Memberships: sweeper,
		Metrics:     m,
		BatchSize:   2,
	})
	if err != nil {
		t.Fatalf("NewMembershipExpiryJob: %v", err)
	}
	return jobIface.(*membershipExpiryJob)
}

func TestMembershipExpiryJobDrainsFullBatches(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{batches: []int{2, 2, 1}}
	reg := prometheus.NewRegistry()
	job := newMembershipExpiryJob(t, sweeper, metrics.NewCronJobMetrics(reg))
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 3 {
		t.Fatalf("expected 3 sweeps, got %d", sweeper.calls)
	}
	for _, c := range sweeper.cutoffs {
		if !c.Equal(now) {
			t.Fatalf("expected fixed cutoff %s, got %s", now, c)
		}
	}
	expected := `
# HELP clubsphere_cron_job_items_total Rows handled by cron jobs.
# TYPE clubsphere_cron_job_items_total counter
clubsphere_cron_job_items_total{job="membership-expiry"} 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "clubsphere_cron_job_items_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestMembershipExpiryJobStopsOnError(t *testing.T) {
	sweeper := &fakeSweeper{batches: []int{2}, err: errors.New("db down")}
	job := newMembershipExpiryJob(t, sweeper, nil)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sweeper.calls != 2 {
		t.Fatalf("expected 2 sweeps, got %d", sweeper.calls)
	}
}

func TestMembershipExpiryJobCapsBatchesPerCycle(t *testing.T) {
	batches := make([]int, maxExpiryBatchesPerCycle+5)
	for i := range batches {
		batches[i] = 2
	}
	sweeper := &fakeSweeper{batches: batches}
	job := newMembershipExpiryJob(t, sweeper, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != maxExpiryBatchesPerCycle {
		t.Fatalf("expected %d sweeps, got %d", maxExpiryBatchesPerCycle, sweeper.calls)
	}
}
