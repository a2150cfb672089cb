// AngelaMos | 2026
// metrics.go

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "media_rental"
)

var (
	// WebhookRequestsTotal counts billing webhook deliveries by event type
	// and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Billing webhook deliveries by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookEventsTotal counts reconciliation outcomes per event kind.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Processed billing events by kind and outcome.",
	}, []string{"event_type", "outcome"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "processing_seconds",
		Help:      "Billing event processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// PartialConsistencyTotal is the signal for reconciliation tooling: one
	// side of a mirrored offer changed and the other did not.
	PartialConsistencyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offer",
		Name:      "partial_consistency_total",
		Help:      "Mirrored offer mutations that committed on one side only.",
	}, []string{"operation"})

	OrphansRepairedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offer",
		Name:      "orphans_repaired_total",
		Help:      "Offer mirrors repaired by the reconciliation job.",
	}, []string{"action"})

	SubscriptionLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "subscription",
		Name:      "provider_lookup_failures_total",
		Help:      "Provider subscription lookups that failed and were defaulted.",
	})
)

// Outcome labels for WebhookEventsTotal.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)
