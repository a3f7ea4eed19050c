// Package metrics provides Prometheus metrics for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triagepipe"

var (
	// RowsRead counts raw rows read from the input source.
	RowsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "rows_read_total",
			Help:      "Total raw alert rows read",
		},
	)

	// RowsRejected counts rows rejected during normalization or labeling.
	RowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "rows_rejected_total",
			Help:      "Total rows rejected, by reason",
		},
		[]string{"reason"},
	)

	// SplitRows counts feature rows exported per split.
	SplitRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "split_rows",
			Help:      "Feature rows exported in the last run, by split",
		},
		[]string{"split"},
	)

	// LeakageChecks counts verifier outcomes.
	LeakageChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leakage",
			Name:      "checks_total",
			Help:      "Leakage verifier check outcomes, by check and status",
		},
		[]string{"check", "status"},
	)

	// RunDuration tracks end-to-end batch run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// StreamRecords counts records enriched in streaming mode.
	StreamRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "records_total",
			Help:      "Total records enriched in streaming mode",
		},
	)
)

// Serve exposes /metrics on addr. It blocks, so callers run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
