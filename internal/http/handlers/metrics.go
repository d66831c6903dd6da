package handlers

import "github.com/prometheus/client_golang/prometheus"

// Webhook delivery outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeMalformed = "malformed"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

var webhookUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_updates_total",
		Help: "Updates received on the webhook by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(webhookUpdates)
}
