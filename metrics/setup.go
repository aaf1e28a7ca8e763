package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus registry and HTTP server that
// exposes outfield's metrics.
//
// Each service keeps its own isolated registry so that metric names do
// not collide when several services run in one process.
type Metrics struct {
	// Server exposes the /metrics endpoint for Prometheus scraping.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	Registry *prometheus.Registry

	// Core built-in metrics for the prediction pipeline.
	predictionsTotal *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	outputsWritten   *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance with a dedicated registry, the
// default Go/process collectors, a constant `service` label on every
// metric, and an HTTP server serving /metrics at cfg.Address.
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	wrappedRegistry := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry: registry,
	}

	m.predictionsTotal = createCounterVec(
		"predictions_total",
		"Number of model predictions computed, labelled by model and status",
		[]string{"model", "status"},
	)
	m.jobsTotal = createCounterVec(
		"jobs_total",
		"Number of scheduled jobs, labelled by method and status",
		[]string{"method", "status"},
	)
	m.searchDuration = createHistogramVec(
		"vector_search_duration_seconds",
		"Duration of nearest-neighbor searches per vector index",
		[]string{"vector_index"},
		prometheus.DefBuckets,
	)
	m.outputsWritten = createCounterVec(
		"outputs_written_total",
		"Number of output values persisted, labelled by output field",
		[]string{"output_field"},
	)

	wrappedRegistry.MustRegister(
		m.predictionsTotal,
		m.jobsTotal,
		m.searchDuration,
		m.outputsWritten,
	)

	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	return m
}
