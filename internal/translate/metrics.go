package translate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linguabridge_translation_requests_total",
			Help: "Total number of translation requests",
		},
		[]string{"backend", "status"},
	)

	translationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linguabridge_translation_request_duration_seconds",
			Help:    "Duration of translation requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"backend", "status"},
	)

	translationRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linguabridge_translation_request_size_bytes",
			Help:    "Size of translation request text in bytes",
			Buckets: []float64{16, 64, 256, 1024, 4096, 16384},
		},
		[]string{"backend"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linguabridge_translation_breaker_state",
			Help: "Circuit breaker state per backend (0=closed, 1=half-open, 2=open)",
		},
		[]string{"backend"},
	)
)

func recordTranslation(backend string, size int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	translationRequestsTotal.WithLabelValues(backend, status).Inc()
	translationRequestDuration.WithLabelValues(backend, status).Observe(d.Seconds())
	translationRequestSize.WithLabelValues(backend).Observe(float64(size))
}
