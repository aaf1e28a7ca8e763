// Package model defines the Predictor contract: a user-supplied
// callable wrapped with optional preprocess/postprocess hooks, batch
// or per-item inference, output encoding, and job-creation helpers.
package model

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/outfield-ai/outfield/codec"
	"github.com/outfield-ai/outfield/jobs"
)

// ErrInvalidPredictor is wrapped by Validate failures.
var ErrInvalidPredictor = errors.New("model: invalid predictor")

// Callable is the underlying model invocation for a single item.
// Multi-key inputs arrive as []any (positional) or map[string]any
// (named), matching the listener key shape.
type Callable func(ctx context.Context, x any) (any, error)

// BatchCallable invokes the model on a whole batch at once. The result
// must be element-wise identical to calling the per-item path on each
// input, order preserved.
type BatchCallable func(ctx context.Context, xs []any) ([]any, error)

// Transform is a preprocess or postprocess hook.
type Transform func(x any) (any, error)

// Schema serializes structured outputs for storage; the alternative to
// a vector codec.
type Schema interface {
	Identifier() string
	Encode(v any) (any, error)
}

// Predictor wraps a model callable with the hooks and metadata the
// orchestration layer needs.
//
// Exactly one of Datatype and Schema may be set; whichever is set
// encodes outputs before they are persisted.
type Predictor struct {
	// Identifier names the model; output fields are namespaced by it.
	Identifier string

	// Version distinguishes successive registrations of the same model.
	Version int

	// ToCall is the per-item model invocation.
	ToCall Callable

	// BatchCall is the whole-batch invocation, used by Forward when
	// BatchPredict is set.
	BatchCall BatchCallable

	// Preprocess, when set, runs on every input before the callable.
	Preprocess Transform

	// Postprocess, when set, runs on every raw model output.
	Postprocess Transform

	// Datatype encodes outputs for storage and declares the output
	// shape used for vector-index dimensionality.
	Datatype *codec.DataType

	// Schema is the structured-output alternative to Datatype.
	Schema Schema

	// BatchPredict routes Forward through BatchCall.
	BatchPredict bool

	// NumWorkers bounds the per-item worker pool in Forward; zero
	// means sequential.
	NumWorkers int
}

// Validate checks the predictor's invariants.
func (p *Predictor) Validate() error {
	if p.Identifier == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidPredictor)
	}
	if p.ToCall == nil {
		return fmt.Errorf("%w %q: missing callable", ErrInvalidPredictor, p.Identifier)
	}
	if p.BatchPredict && p.BatchCall == nil {
		return fmt.Errorf("%w %q: batch predict requires a batch callable", ErrInvalidPredictor, p.Identifier)
	}
	if p.Datatype != nil && p.Schema != nil {
		return fmt.Errorf("%w %q: datatype and output schema are mutually exclusive", ErrInvalidPredictor, p.Identifier)
	}
	return nil
}

// PredictOne applies preprocess, the callable, and postprocess to a
// single item. It runs outside the batching machinery; errors from the
// callable propagate unchanged.
func (p *Predictor) PredictOne(ctx context.Context, x any) (any, error) {
	var err error
	if p.Preprocess != nil {
		if x, err = p.Preprocess(x); err != nil {
			return nil, err
		}
	}
	y, err := p.ToCall(ctx, x)
	if err != nil {
		return nil, err
	}
	if p.Postprocess != nil {
		if y, err = p.Postprocess(y); err != nil {
			return nil, err
		}
	}
	return y, nil
}

// Forward invokes the callable on a batch: the whole batch at once
// when BatchPredict is set, otherwise per item, optionally on a worker
// pool of size numWorkers. output[i] always corresponds to xs[i].
func (p *Predictor) Forward(ctx context.Context, xs []any, numWorkers int) ([]any, error) {
	if p.BatchPredict {
		out, err := p.BatchCall(ctx, xs)
		if err != nil {
			return nil, err
		}
		if len(out) != len(xs) {
			return nil, fmt.Errorf("model %q: batch callable returned %d outputs for %d inputs", p.Identifier, len(out), len(xs))
		}
		return out, nil
	}

	out := make([]any, len(xs))

	if numWorkers <= 0 {
		for i, x := range xs {
			y, err := p.ToCall(ctx, x)
			if err != nil {
				return nil, err
			}
			out[i] = y
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, x := range xs {
		g.Go(func() error {
			y, err := p.ToCall(gctx, x)
			if err != nil {
				return err
			}
			out[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict preprocesses every element, runs Forward, and postprocesses
// every output, returning results in input order.
func (p *Predictor) Predict(ctx context.Context, xs []any) ([]any, error) {
	prepped := xs
	if p.Preprocess != nil {
		prepped = make([]any, len(xs))
		for i, x := range xs {
			y, err := p.Preprocess(x)
			if err != nil {
				return nil, err
			}
			prepped[i] = y
		}
	}

	out, err := p.Forward(ctx, prepped, p.NumWorkers)
	if err != nil {
		return nil, err
	}

	if p.Postprocess != nil {
		for i, y := range out {
			z, err := p.Postprocess(y)
			if err != nil {
				return nil, err
			}
			out[i] = z
		}
	}
	return out, nil
}

// EncodeOutput serializes one computed output for storage, through the
// codec or the output schema, whichever is configured.
func (p *Predictor) EncodeOutput(v any) (any, error) {
	switch {
	case p.Datatype != nil:
		return p.Datatype.Encode(v)
	case p.Schema != nil:
		return p.Schema.Encode(v)
	default:
		return v, nil
	}
}

// CreatePredictJob produces a deferred predict invocation for an
// external scheduler: which model, which listener key, and whether to
// overwrite existing outputs. Re-submitting the returned job is
// idempotent.
func (p *Predictor) CreatePredictJob(idKey string, overwrite bool, ids []string, deps ...*jobs.Job) *jobs.Job {
	args := map[string]any{
		"id_key":    idKey,
		"overwrite": overwrite,
	}
	if len(ids) > 0 {
		args["ids"] = ids
	}
	return jobs.NewJob("model", p.Identifier, "predict", args, deps...)
}

// CreateFitJob produces a deferred fit invocation for an external
// scheduler.
func (p *Predictor) CreateFitJob(args map[string]any, deps ...*jobs.Job) *jobs.Job {
	return jobs.NewJob("model", p.Identifier, "fit", args, deps...)
}
