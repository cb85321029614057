// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestation_generations_total",
			Help: "Total number of attestation generation attempts by outcome",
		},
		[]string{"reason", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attestation_generation_duration_seconds",
			Help:    "Duration of one generation attempt in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"outcome"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attestation_generations_active",
			Help: "Number of generation attempts currently driving a browser page",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestation_deliveries_total",
			Help: "Total number of document deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_total",
			Help: "Inbound messages by the route the dispatcher picked",
		},
		[]string{"route"},
	)

	BrowserStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "browser_engine_starts_total",
			Help: "Number of times the shared browser engine was launched",
		},
	)
)
