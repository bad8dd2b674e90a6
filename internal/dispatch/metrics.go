package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linguabridge_messages_total",
			Help: "Messages handled, by kind and final outcome",
		},
		[]string{"kind", "outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linguabridge_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"stage"},
	)

	overridesChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linguabridge_override_changes_total",
			Help: "Forced-language changes made by users, by language (auto for clears)",
		},
		[]string{"language"},
	)
)

// observe records the duration of a stage started at start.
func observe(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
