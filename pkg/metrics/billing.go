package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records webhook processing and authorization outcomes.
type BillingMetrics struct {
	events  *prometheus.CounterVec
	denials *prometheus.CounterVec
}

// Webhook event outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeSkipped  = "skipped"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Billing webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_authorization_denials_total",
		Help: "Authorization denials by required tier.",
	}, []string{"required_tier"})
	reg.MustRegister(events, denials)
	return &BillingMetrics{
		events:  events,
		denials: denials,
	}
}

// ObserveEvent counts one webhook event with its processing outcome.
func (b *BillingMetrics) ObserveEvent(eventType, outcome string) {
	if b == nil || b.events == nil {
		return
	}
	b.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncDenial counts one insufficient-tier denial.
func (b *BillingMetrics) IncDenial(requiredTier string) {
	if b == nil || b.denials == nil {
		return
	}
	b.denials.WithLabelValues(normalizeLabel(requiredTier)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, ".", "_")
}
