package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "membership-expiry"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncSkipped(job)
	m.AddProcessed(job, 7)
	m.AddProcessed(job, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, outcome := range []string{"success", "failure", "skipped"} {
		got, err := counterValue(mfs, "clubsphere_cron_job_runs_total", map[string]string{"job": job, "outcome": outcome})
		if err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		}
		if got != 1 {
			t.Fatalf("expected %s=1, got %f", outcome, got)
		}
	}
	if got, err := counterValue(mfs, "clubsphere_cron_job_items_total", map[string]string{"job": job}); err != nil || got != 7 {
		t.Fatalf("expected items=7, got %f (%v)", got, err)
	}
	if got, err := histogramSum(mfs, "clubsphere_cron_job_duration_seconds", map[string]string{"job": job}); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.ObserveDuration("x", time.Second)
	NewCronJobMetrics(nil).AddProcessed("x", 3)

	var httpM *HTTPMetrics
	httpM.Observe("GET", "/x", 200, time.Millisecond)

	var pay *PaymentMetrics
	pay.IncIntent("membership")
	pay.IncSettlement("confirm", "success")
	NewPaymentMetrics(nil).IncUnattached()
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/api/memberships", 201, 20*time.Millisecond)
	m.Observe("POST", "/api/memberships", 201, 30*time.Millisecond)
	m.Observe("POST", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got, err := counterValue(mfs, "clubsphere_http_requests_total", map[string]string{"method": "POST", "route": "/api/memberships", "status": "201"})
	if err != nil || got != 2 {
		t.Fatalf("expected 2 requests, got %f (%v)", got, err)
	}
	if _, err := counterValue(mfs, "clubsphere_http_requests_total", map[string]string{"route": "unknown", "status": "404"}); err != nil {
		t.Fatalf("expected unknown route label: %v", err)
	}
}

func TestPaymentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.IncIntent("event")
	m.IncSettlement("webhook", "success")
	m.IncGatewayError("retrieve_intent")
	m.IncUnattached()
	m.IncReconciliationPending()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	checks := []struct {
		name   string
		labels map[string]string
	}{
		{"clubsphere_payments_intents_created_total", map[string]string{"kind": "event"}},
		{"clubsphere_payments_settlements_total", map[string]string{"source": "webhook", "outcome": "success"}},
		{"clubsphere_payments_gateway_errors_total", map[string]string{"operation": "retrieve_intent"}},
		{"clubsphere_payments_unattached_total", nil},
		{"clubsphere_payments_reconciliation_pending_total", nil},
	}
	for _, c := range checks {
		got, err := counterValue(mfs, c.name, c.labels)
		if err != nil || got != 1 {
			t.Fatalf("%s: expected 1, got %f (%v)", c.name, got, err)
		}
	}
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func histogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
