package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins is a counter for login initiations.
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbroker_logins_total",
			Help: "The total number of login initiations.",
		},
		[]string{"outcome"},
	)

	// Callbacks is a counter for provider callbacks.
	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbroker_callbacks_total",
			Help: "The total number of provider callbacks handled.",
		},
		[]string{"outcome"},
	)

	// Redemptions is a counter for session code redemptions.
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbroker_redemptions_total",
			Help: "The total number of session code redemption attempts.",
		},
		[]string{"outcome"},
	)

	// RequestDuration is a histogram of HTTP request handling time.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authbroker_request_duration_seconds",
			Help:    "A histogram of HTTP request handling duration.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// SweptRows is a counter for rows removed by the background sweeper.
	SweptRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbroker_swept_rows_total",
			Help: "The total number of expired rows removed by the sweeper.",
		},
		[]string{"table"},
	)

	// SweepFailures is a counter for failed sweep passes.
	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authbroker_sweep_failures_total",
			Help: "The total number of sweep passes that failed.",
		},
	)
)
