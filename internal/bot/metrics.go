package bot

import "github.com/prometheus/client_golang/prometheus"

var (
	updatesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound updates by matched route and outcome.",
		},
		[]string{"route", "outcome"},
	)
	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_handler_duration_seconds",
			Help:    "Handler latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_broadcasts_total",
			Help: "Messages posted to the household chat by outcome.",
		},
		[]string{"outcome"},
	)
	choresRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_notifications_recorded_total",
			Help: "Recorded household events by type.",
		},
		[]string{"type"},
	)
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_loop_queue_depth",
		Help: "Tasks waiting in the bot loop.",
	})
)

func init() {
	prometheus.MustRegister(updatesHandled, handlerDuration, broadcasts, choresRecorded, queueDepth)
}
