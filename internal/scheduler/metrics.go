package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Scheduled job executions by job name and outcome.",
		},
		[]string{"job", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of scheduled job executions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	pendingOneShots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_pending_oneshots",
			Help: "One-shot jobs currently armed.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobDuration, pendingOneShots)
}
