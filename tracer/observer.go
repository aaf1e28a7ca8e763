package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	traceSpan "go.opentelemetry.io/otel/trace"

	"github.com/outfield-ai/outfield/observability"
)

// Observer emits one span per observed backend operation. Operations
// are reported after the fact, so the span bounds are reconstructed
// from the measured duration.
type Observer struct {
	tracer *Tracer
}

var _ observability.Observer = (*Observer)(nil)

// NewObserver builds an observer emitting spans through t.
func NewObserver(t *Tracer) *Observer {
	return &Observer{tracer: t}
}

// ObserveOperation implements observability.Observer.
func (o *Observer) ObserveOperation(op observability.OperationContext) {
	end := time.Now()
	start := end.Add(-op.Duration)

	tr := o.tracer.tracer.Tracer("")
	_, span := tr.Start(context.Background(), op.Component+"."+op.Operation,
		traceSpan.WithTimestamp(start))
	span.SetAttributes(
		attribute.String("resource", op.Resource),
		attribute.String("sub_resource", op.SubResource),
		attribute.Int64("size", op.Size),
	)
	if op.Error != nil {
		span.RecordError(op.Error)
		span.SetStatus(codes.Error, op.Error.Error())
	}
	span.End(traceSpan.WithTimestamp(end))
}
