package metrics

import (
	"strings"

	"github.com/outfield-ai/outfield/observability"
)

// Observer bridges backend operation notifications into the built-in
// metrics: job executions and predictions feed the outcome counters,
// nearest-neighbor searches feed the search-duration histogram, and
// successful output writes feed the outputs counter.
type Observer struct {
	metrics *Metrics
}

var _ observability.Observer = (*Observer)(nil)

// NewObserver builds an observer recording into m.
func NewObserver(m *Metrics) *Observer {
	return &Observer{metrics: m}
}

// ObserveOperation implements observability.Observer.
func (o *Observer) ObserveOperation(op observability.OperationContext) {
	switch {
	case op.Component == "jobs" && op.Operation == "perform":
		o.metrics.IncrementJobs(op.SubResource, statusOf(op.Error))
	case op.Component == "model" && op.Operation == "predict":
		o.metrics.IncrementPredictions(op.Resource, statusOf(op.Error))
	case strings.HasPrefix(op.Operation, "find_nearest"), op.Operation == "get_nearest":
		o.metrics.RecordSearchDurationSeconds(op.Resource, op.Duration)
	case op.Operation == "model_update":
		if op.Error == nil && op.Size > 0 {
			o.metrics.AddOutputsWritten(op.SubResource, int(op.Size))
		}
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
