package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector abstracts the metric operations the Observer records when
// it sees prediction-pipeline operations. It is implemented by
// *Metrics.
type Collector interface {
	// IncrementPredictions increments the prediction counter for a model.
	IncrementPredictions(model, status string)

	// IncrementJobs increments the executed-job counter.
	IncrementJobs(method, status string)

	// RecordSearchDuration records the elapsed time of a search.
	RecordSearchDuration(start time.Time, vectorIndex string)

	// RecordSearchDurationSeconds records an already-measured search
	// duration.
	RecordSearchDurationSeconds(vectorIndex string, d time.Duration)

	// AddOutputsWritten counts persisted output values.
	AddOutputsWritten(outputField string, n int)

	// Dynamic metric factories.

	CreateCounter(name, help string, labels []string) *prometheus.CounterVec
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}
