package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records gateway webhook and payout decision outcomes.
type SettlementMetrics struct {
	webhookDeliveries *prometheus.CounterVec
	webhookDuration   *prometheus.HistogramVec
	payoutDecisions   *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_deliveries_total",
		Help: "Gateway webhook deliveries by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_webhook_duration_seconds",
		Help:    "Duration of webhook handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_decisions_total",
		Help: "Admin payout decisions by result.",
	}, []string{"decision"})
	reg.MustRegister(deliveries, duration, decisions)
	return &SettlementMetrics{
		webhookDeliveries: deliveries,
		webhookDuration:   duration,
		payoutDecisions:   decisions,
	}
}

// ObserveWebhook records one webhook delivery with its outcome label.
func (m *SettlementMetrics) ObserveWebhook(outcome string, duration time.Duration) {
	if m == nil || m.webhookDeliveries == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.webhookDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncPayoutDecision increments the counter for the named decision.
func (m *SettlementMetrics) IncPayoutDecision(decision string) {
	if m == nil || m.payoutDecisions == nil {
		return
	}
	m.payoutDecisions.WithLabelValues(normalizeLabel(decision)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
