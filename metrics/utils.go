package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IncrementPredictions increments the prediction counter for a model.
// Example: metrics.IncrementPredictions("my-model", "success")
func (m *Metrics) IncrementPredictions(model, status string) {
	m.predictionsTotal.WithLabelValues(model, status).Inc()
}

// IncrementJobs increments the scheduled-job counter.
// Example: metrics.IncrementJobs("predict", "submitted")
func (m *Metrics) IncrementJobs(method, status string) {
	m.jobsTotal.WithLabelValues(method, status).Inc()
}

// RecordSearchDuration records the elapsed time of a nearest-neighbor
// search against a vector index.
// Example: defer metrics.RecordSearchDuration(time.Now(), "my-index")
func (m *Metrics) RecordSearchDuration(start time.Time, vectorIndex string) {
	m.searchDuration.WithLabelValues(vectorIndex).Observe(time.Since(start).Seconds())
}

// RecordSearchDurationSeconds records an already-measured search
// duration against a vector index; the observer reports durations
// after the fact.
func (m *Metrics) RecordSearchDurationSeconds(vectorIndex string, d time.Duration) {
	m.searchDuration.WithLabelValues(vectorIndex).Observe(d.Seconds())
}

// AddOutputsWritten counts output values persisted under an output field.
func (m *Metrics) AddOutputsWritten(outputField string, n int) {
	m.outputsWritten.WithLabelValues(outputField).Add(float64(n))
}

// CreateCounter creates a new CounterVec metric and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := createCounterVec(name, help, labels)
	m.Registry.MustRegister(counter)
	return counter
}

// CreateHistogram creates a new HistogramVec metric and registers it.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hist := createHistogramVec(name, help, labels, buckets)
	m.Registry.MustRegister(hist)
	return hist
}

// CreateGauge creates a new GaugeVec metric and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := createGaugeVec(name, help, labels)
	m.Registry.MustRegister(gauge)
	return gauge
}

func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

func createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}
