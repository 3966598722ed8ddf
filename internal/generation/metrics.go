package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal tracks provider attempts by call and outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_generation_attempts_total",
			Help: "Total number of provider call attempts",
		},
		[]string{"call", "outcome"},
	)

	// RetriesTotal tracks retries by call and failure kind
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_generation_retries_total",
			Help: "Total number of retried provider calls",
		},
		[]string{"call", "kind"},
	)

	// ExhaustedTotal tracks calls that ran out of attempts
	ExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scry_generation_exhausted_total",
			Help: "Total number of provider calls that exhausted their retries",
		},
		[]string{"call"},
	)

	// BackoffSeconds tracks the waits between attempts
	BackoffSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scry_generation_backoff_seconds",
			Help:    "Wait between provider call attempts in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"kind"},
	)
)
