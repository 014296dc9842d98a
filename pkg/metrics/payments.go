package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics exposes reconciliation outcomes so stuck or unattached payments are visible.
type PaymentMetrics struct {
	intents   *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	gateway   *prometheus.CounterVec
	unattach  prometheus.Counter
	reconcile prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "intents_created_total",
			Help:      "Payment intents created by kind.",
		}, []string{"kind"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "settlements_total",
			Help:      "Payment settlement outcomes by source.",
		}, []string{"source", "outcome"}),
		gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "gateway_errors_total",
			Help:      "Gateway call failures by operation.",
		}, []string{"operation"}),
		unattach: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "unattached_total",
			Help:      "Successful payments flagged for refund because the enrollment could not be attached.",
		}),
		reconcile: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "reconciliation_pending_total",
			Help:      "Gateway successes whose local commit failed.",
		}),
	}
	reg.MustRegister(m.intents, m.outcomes, m.gateway, m.unattach, m.reconcile)
	return m
}

func (p *PaymentMetrics) IncIntent(kind string) {
	if p == nil || p.intents == nil {
		return
	}
	p.intents.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSettlement records a settle attempt; source is confirm, webhook or reconcile.
func (p *PaymentMetrics) IncSettlement(source, outcome string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) IncGatewayError(operation string) {
	if p == nil || p.gateway == nil {
		return
	}
	p.gateway.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (p *PaymentMetrics) IncUnattached() {
	if p == nil || p.unattach == nil {
		return
	}
	p.unattach.Inc()
}

func (p *PaymentMetrics) IncReconciliationPending() {
	if p == nil || p.reconcile == nil {
		return
	}
	p.reconcile.Inc()
}
