package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "agentq"

var (
	JobSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_submitted_total",
			Help:      "Total number of jobs registered through the front door.",
		},
	)

	JobStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_started_total",
			Help:      "Total number of jobs that began live execution.",
		},
	)

	JobCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_completed_total",
			Help:      "Total number of jobs reaching a terminal state, labeled by final status.",
		},
		[]string{"status"},
	)

	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently executing.",
		},
	)

	EventEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_emitted_total",
			Help:      "Total number of events pushed over job streams, labeled by event name.",
		},
		[]string{"event"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter, labeled by operation.",
		},
		[]string{"operation"},
	)

	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of live job execution (seconds).",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		JobSubmittedTotal,
		JobStartedTotal,
		JobCompletedTotal,
		JobsInFlight,
		EventEmittedTotal,
		RateLimitHitsTotal,
		JobDurationSeconds,
	)
}
