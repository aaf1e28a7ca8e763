package model

import (
	"context"
	"fmt"
)

// Sequential chains predictors so each stage's output feeds the next
// stage's input. The composite predicts batch-wise: the whole batch
// flows through stage one before stage two sees it.
func Sequential(identifier string, stages ...*Predictor) (*Predictor, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w %q: sequential model needs at least one stage", ErrInvalidPredictor, identifier)
	}
	for _, s := range stages {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("sequential model %q: %w", identifier, err)
		}
	}

	last := stages[len(stages)-1]

	return &Predictor{
		Identifier: identifier,
		ToCall: func(ctx context.Context, x any) (any, error) {
			for _, s := range stages {
				y, err := s.PredictOne(ctx, x)
				if err != nil {
					return nil, err
				}
				x = y
			}
			return x, nil
		},
		BatchCall: func(ctx context.Context, xs []any) ([]any, error) {
			for _, s := range stages {
				ys, err := s.Predict(ctx, xs)
				if err != nil {
					return nil, err
				}
				xs = ys
			}
			return xs, nil
		},
		BatchPredict: true,
		Datatype:     last.Datatype,
		Schema:       last.Schema,
	}, nil
}
