package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApplicationTransitions counts committed application status transitions.
	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksms_application_transitions_total",
			Help: "Total number of school application status transitions",
		},
		[]string{"from", "to"},
	)

	// TokenConsumptions records token consumption attempts by purpose and result
	// (ok|invalid|expired|used).
	TokenConsumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksms_token_consumptions_total",
			Help: "Total number of verification token consumption attempts",
		},
		[]string{"purpose", "result"},
	)

	// NotificationsSent counts dispatched notifications by template and result (sent|failed).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksms_notifications_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"template", "result"},
	)

	// RateLimited counts requests rejected by a rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksms_rate_limited_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"scope"},
	)

	// SweepRuns records maintenance sweep outcomes by job (expiry|reminders) and result.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eksms_sweep_runs_total",
			Help: "Total number of maintenance sweep executions",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eksms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
