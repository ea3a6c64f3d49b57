// Package metrics declares the Prometheus collectors shared by the API and workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoreRecalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhub_score_recalculations_total",
			Help: "Quality score recalculations by trigger",
		},
		[]string{"trigger"},
	)
	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stationhub_quality_score",
			Help:    "Distribution of computed overall quality scores",
			Buckets: []float64{30, 40, 50, 60, 70, 80, 85, 90, 95, 100},
		},
	)
	StationsHidden = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stationhub_stations_hidden_total",
			Help: "Stations deactivated by the visibility policy",
		},
	)
	FeedbackSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhub_feedback_submissions_total",
			Help: "Accepted listener feedback by type",
		},
		[]string{"type"},
	)
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhub_rate_limited_total",
			Help: "Listener actions rejected by the rate limiter",
		},
		[]string{"action"},
	)
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stationhub_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stationhub_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
	ImportedStations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhub_imported_stations_total",
			Help: "Stations written by importers",
		},
		[]string{"source"},
	)
)
