package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RaisedHands = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "call_features_raised_hands",
			Help: "Current depth of the raised-hand queue per room",
		},
		[]string{"room"},
	)

	MediaRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_features_media_requests_total",
			Help: "Requests issued against the media room service",
		},
		[]string{"operation", "outcome"},
	)

	MuteFanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "call_features_mute_fanout_failures_total",
			Help: "Per-participant mute failures swallowed by the mute-all fan-out",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "call_features_circuit_breaker_state",
			Help: "Media client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
