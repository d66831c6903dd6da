package telegram

import "github.com/prometheus/client_golang/prometheus"

var pollerBatches = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "telegram_poll_batches_total",
	Help: "Non-empty getUpdates batches received.",
})

func init() {
	prometheus.MustRegister(pollerBatches)
}
