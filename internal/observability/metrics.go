package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts state-machine transitions by entity, transition name and outcome
	// (the error code, or "ok").
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "transitions_total", Help: "State transitions attempted"},
		[]string{"entity", "transition", "outcome"},
	)

	TransitionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "transition_duration_seconds",
			Help:      "Transition latency including store access",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"entity", "transition"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "events_published_total", Help: "Events written to the broker"},
		[]string{"topic", "outcome"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "side_effect_failures_total", Help: "Post-commit side effects that failed"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
