// Package metrics provides Prometheus metrics for the aggregation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetchesTotal is a counter of fetch attempts against price sources.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of fetch attempts against price sources",
		},
		[]string{"source", "asset", "status"},
	)

	// RoundDuration is a histogram of full round durations per asset.
	RoundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "round_duration_seconds",
			Help:    "Duration of fetch-aggregate-publish rounds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"asset"},
	)

	// RoundRejectionsTotal is a counter of rejected rounds by reason.
	RoundRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_rejections_total",
			Help: "Total number of rounds that did not produce a published price",
		},
		[]string{"asset", "reason"},
	)

	// PublishesTotal is a counter of registry write attempts.
	PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publishes_total",
			Help: "Total number of registry publish attempts",
		},
		[]string{"asset", "status"},
	)

	// ConsensusPrice is a gauge of the last accepted consensus price.
	ConsensusPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_price",
			Help: "Last accepted consensus price per asset",
		},
		[]string{"asset"},
	)

	// ConsecutiveFailures is a gauge of the per-asset failure streak.
	ConsecutiveFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consecutive_failures",
			Help: "Consecutive failed rounds per asset",
		},
		[]string{"asset"},
	)

	// HealthCheckFailuresTotal is a counter of failed health probe checks.
	HealthCheckFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_check_failures_total",
			Help: "Total number of failed health probe checks",
		},
		[]string{"check"},
	)

	// RegistryUp is a gauge of registry connectivity.
	RegistryUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_up",
			Help: "Registry connectivity (1=reachable, 0=unreachable)",
		},
	)

	// AlertsTotal is a counter of alerts sent to the alert sink.
	AlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Total number of alerts sent",
		},
	)
)

// Init registers all metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		SourceFetchesTotal,
		RoundDuration,
		RoundRejectionsTotal,
		PublishesTotal,
		ConsensusPrice,
		ConsecutiveFailures,
		HealthCheckFailuresTotal,
		RegistryUp,
		AlertsTotal,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records a fetch attempt outcome.
func RecordSourceFetch(source, asset, status string) {
	SourceFetchesTotal.WithLabelValues(source, asset, status).Inc()
}

// RecordRound records a completed round and its duration.
func RecordRound(asset string, duration time.Duration) {
	RoundDuration.WithLabelValues(asset).Observe(duration.Seconds())
}

// RecordRejection records a round that produced no published price.
func RecordRejection(asset, reason string) {
	RoundRejectionsTotal.WithLabelValues(asset, reason).Inc()
}

// RecordPublish records a registry publish attempt.
func RecordPublish(asset, status string) {
	PublishesTotal.WithLabelValues(asset, status).Inc()
}

// RecordConsensusPrice records the last accepted consensus price.
func RecordConsensusPrice(asset string, price float64) {
	ConsensusPrice.WithLabelValues(asset).Set(price)
}

// RecordFailureStreak records the consecutive failure count for an asset.
func RecordFailureStreak(asset string, count int) {
	ConsecutiveFailures.WithLabelValues(asset).Set(float64(count))
}

// RecordHealthCheckFailure records a failed health probe check.
func RecordHealthCheckFailure(check string) {
	HealthCheckFailuresTotal.WithLabelValues(check).Inc()
}

// RecordRegistryUp records registry connectivity.
func RecordRegistryUp(up bool) {
	val := 0.0
	if up {
		val = 1.0
	}
	RegistryUp.Set(val)
}

// RecordAlert records an alert sent to the sink.
func RecordAlert() {
	AlertsTotal.Inc()
}
