package datalayer

import (
	"context"
	"fmt"
	"time"

	"github.com/outfield-ai/outfield/jobs"
	"github.com/outfield-ai/outfield/observability"
)

// Perform implements jobs.Performer: it resolves the job's component
// and invokes the named method. Predict jobs run the listener
// identified by the model and id_key arguments, then push any freshly
// computed vectors into the indexes built on that listener. Every
// execution is reported to the attached observer.
func (d *Datalayer) Perform(ctx context.Context, job *jobs.Job) (err error) {
	start := time.Now()
	defer func() {
		d.observe(observability.OperationContext{
			Component:   "jobs",
			Operation:   "perform",
			Resource:    job.Component,
			SubResource: job.Method,
			Duration:    time.Since(start),
			Error:       err,
		})
	}()

	if job.TypeID != TypeModel {
		return fmt.Errorf("datalayer: cannot perform jobs for component type %q", job.TypeID)
	}
	switch job.Method {
	case "predict":
		return d.performPredict(ctx, job)
	default:
		return fmt.Errorf("datalayer: model %q has no job method %q", job.Component, job.Method)
	}
}

func (d *Datalayer) performPredict(ctx context.Context, job *jobs.Job) (err error) {
	start := time.Now()
	idKey, _ := job.Args["id_key"].(string)
	if idKey == "" {
		return fmt.Errorf("datalayer: predict job %s is missing id_key", job.ID)
	}

	l, err := d.Listener(job.Component + "/" + idKey)
	if err != nil {
		return err
	}

	ids := stringSlice(job.Args["ids"])
	defer func() {
		d.observe(observability.OperationContext{
			Component:   "model",
			Operation:   "predict",
			Resource:    job.Component,
			SubResource: idKey,
			Duration:    time.Since(start),
			Size:        int64(len(ids)),
			Error:       err,
		})
	}()

	if err = l.Predict(ctx, ids); err != nil {
		return err
	}
	return d.syncIndexes(ctx, l, ids)
}

func (d *Datalayer) observe(op observability.OperationContext) {
	if d.observer == nil {
		return
	}
	d.observer.ObserveOperation(op)
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}
