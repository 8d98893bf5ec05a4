// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts handled chat commands by name and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stattrack",
		Name:      "commands_total",
		Help:      "Chat commands handled, by command name and outcome.",
	}, []string{"command", "outcome"})

	// StoreOpDuration observes document store round trips.
	StoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stattrack",
		Name:      "store_op_duration_seconds",
		Help:      "Document store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"})
)
