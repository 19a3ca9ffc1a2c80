// Package metrics holds the Prometheus collectors for the chat pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total number of chat turns by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Duration of calls to the managed services.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
)

func init() {
	prometheus.MustRegister(turnsTotal)
	prometheus.MustRegister(remoteCallDuration)
}

// RecordTurn counts a finished turn.
func RecordTurn(mode, outcome string) {
	turnsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveRemoteCall starts a timer for one remote call. Call the returned
// function with the call's error when it completes.
func ObserveRemoteCall(service string) func(err error) {
	start := time.Now()
	return func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		remoteCallDuration.WithLabelValues(service, result).Observe(time.Since(start).Seconds())
	}
}
