// Package metrics holds the Prometheus collectors for ingestion, session lifecycle
// and scheduled jobs. HTTP request metrics live in the middleware package.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitortrack_events_ingested_total",
			Help: "Events accepted into the event store",
		},
		[]string{"event_type"},
	)

	eventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitortrack_events_rejected_total",
			Help: "Events rejected during ingestion, by error kind",
		},
		[]string{"reason"},
	)

	sessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitortrack_session_transitions_total",
			Help: "Session status transitions",
		},
		[]string{"status"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visitortrack_session_sweep_duration_seconds",
			Help:    "Duration of inactive-session sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitortrack_scheduled_job_runs_total",
			Help: "Scheduled job executions, by job and result",
		},
		[]string{"job", "result"},
	)
)

func EventIngested(eventType string) {
	eventsIngested.WithLabelValues(eventType).Inc()
}

func EventRejected(reason string) {
	eventsRejected.WithLabelValues(reason).Inc()
}

// SessionTransition counts n sessions moving into status.
func SessionTransition(status string, n int64) {
	if n <= 0 {
		return
	}
	sessionTransitions.WithLabelValues(status).Add(float64(n))
}

func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

func JobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	jobRuns.WithLabelValues(job, result).Inc()
}
