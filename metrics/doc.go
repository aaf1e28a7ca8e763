// Package metrics exposes Prometheus metrics for the prediction
// pipeline: predictions computed per model, jobs scheduled, output
// values persisted, and nearest-neighbor search latency per vector
// index.
//
// Each service gets an isolated registry wrapped with a constant
// `service` label, served on /metrics. Dynamic factories
// (CreateCounter, CreateHistogram, CreateGauge) are available for
// application-specific metrics.
package metrics
