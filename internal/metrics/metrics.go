package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enrichment metrics
	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatwatch_enrichment_lookups_total",
			Help: "Total number of outdoor temperature lookups",
		},
		[]string{"result"},
	)

	ReadingsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatwatch_readings_deduped_total",
			Help: "Total number of duplicate readings removed",
		},
	)

	// Alert metrics
	AlertsDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatwatch_alerts_dispatched_total",
			Help: "Total number of alerts successfully dispatched",
		},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatwatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the daily throttle",
		},
	)

	DispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatwatch_dispatch_failures_total",
			Help: "Total number of failed notification dispatch attempts",
		},
	)
)
