// internal/metrics/metrics.go

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AggregationUnits counts (title, day) units by outcome: success, failure
	AggregationUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampulse_aggregation_units_total",
			Help: "Total number of aggregated (title, day) units",
		},
		[]string{"status"},
	)

	AggregationUnitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streampulse_aggregation_unit_duration_seconds",
			Help:    "Duration of one (title, day) aggregation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampulse_rows_upserted_total",
			Help: "Total number of aggregate rows written",
		},
		[]string{"platform"},
	)

	ItemsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampulse_items_ingested_total",
			Help: "Total number of new items stored by collectors",
		},
		[]string{"platform"},
	)

	SourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampulse_source_errors_total",
			Help: "Total number of failed source fetches",
		},
		[]string{"platform"},
	)

	ItemsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streampulse_items_scored_total",
			Help: "Total number of social items scored for sentiment",
		},
		[]string{"platform", "class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streampulse_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streampulse_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// RecordUnit records the outcome and duration of one aggregation unit
func RecordUnit(err error, seconds float64) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	AggregationUnits.WithLabelValues(status).Inc()
	AggregationUnitDuration.Observe(seconds)
}
