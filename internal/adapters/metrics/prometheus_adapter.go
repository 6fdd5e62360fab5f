package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konnex_identity_cache_lookups_total",
			Help: "Identity cache lookups by key kind and outcome.",
		},
		[]string{"kind", "outcome"}, // kind: role|profile, outcome: hit|miss|error
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konnex_identity_resolutions_total",
			Help: "Authoritative identity resolutions by outcome.",
		},
		[]string{"outcome"}, // resolved|no_role|error
	)

	resolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "konnex_identity_resolution_duration_seconds",
			Help:    "Wall-clock duration of authoritative identity resolutions.",
			Buckets: prometheus.DefBuckets,
		},
	)

	staleResolutionsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "konnex_identity_stale_resolutions_discarded_total",
			Help: "Resolutions discarded because a newer sign-in event superseded them.",
		},
	)

	authEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konnex_identity_auth_events_total",
			Help: "Authentication stream events by type.",
		},
		[]string{"type"}, // signed-in|signed-out|error
	)

	snapshotSubscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "konnex_identity_snapshot_subscribers",
			Help: "Number of connected snapshot consumers.",
		},
	)
)

// ObserveCacheLookup records one identity cache lookup.
func ObserveCacheLookup(kind, outcome string) {
	cacheLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveResolution records an authoritative resolution and its duration.
func ObserveResolution(outcome string, seconds float64) {
	resolutionsTotal.WithLabelValues(outcome).Inc()
	resolutionDuration.Observe(seconds)
}

// IncrementStaleResolutionDiscarded counts a discarded stale resolution.
func IncrementStaleResolutionDiscarded() {
	staleResolutionsDiscarded.Inc()
}

// IncrementAuthEvent counts one auth stream event.
func IncrementAuthEvent(eventType string) {
	authEventsTotal.WithLabelValues(eventType).Inc()
}

// IncrementSnapshotSubscribers increments the connected consumer gauge.
func IncrementSnapshotSubscribers() {
	snapshotSubscribersGauge.Inc()
}

// DecrementSnapshotSubscribers decrements the connected consumer gauge.
func DecrementSnapshotSubscribers() {
	snapshotSubscribersGauge.Dec()
}
