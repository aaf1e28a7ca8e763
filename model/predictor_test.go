package model

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/outfield-ai/outfield/codec"
)

func addPredictor(n int) *Predictor {
	return &Predictor{
		Identifier: fmt.Sprintf("add-%d", n),
		ToCall: func(ctx context.Context, x any) (any, error) {
			return x.(int) + n, nil
		},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Predictor
		ok   bool
	}{
		{"minimal", Predictor{Identifier: "m", ToCall: addPredictor(1).ToCall}, true},
		{"missing identifier", Predictor{ToCall: addPredictor(1).ToCall}, false},
		{"missing callable", Predictor{Identifier: "m"}, false},
		{"batch without batch callable", Predictor{Identifier: "m", ToCall: addPredictor(1).ToCall, BatchPredict: true}, false},
		{"datatype and schema", Predictor{
			Identifier: "m",
			ToCall:     addPredictor(1).ToCall,
			Datatype:   codec.Vector([]int{4}),
			Schema:     staticSchema{},
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, ErrInvalidPredictor) {
					t.Errorf("expected ErrInvalidPredictor, got %v", err)
				}
			}
		})
	}
}

type staticSchema struct{}

func (staticSchema) Identifier() string        { return "static" }
func (staticSchema) Encode(v any) (any, error) { return v, nil }

func TestPredictOneAppliesHooks(t *testing.T) {
	p := &Predictor{
		Identifier: "hooked",
		Preprocess: func(x any) (any, error) { return x.(int) * 10, nil },
		ToCall: func(ctx context.Context, x any) (any, error) {
			return x.(int) + 1, nil
		},
		Postprocess: func(y any) (any, error) { return y.(int) * 2, nil },
	}

	got, err := p.PredictOne(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	// (3*10 + 1) * 2
	if got != 62 {
		t.Errorf("expected 62, got %v", got)
	}
}

func TestPredictMatchesPredictOne(t *testing.T) {
	double := func(ctx context.Context, x any) (any, error) {
		return x.(int) * 2, nil
	}
	batched := func(ctx context.Context, xs []any) ([]any, error) {
		out := make([]any, len(xs))
		for i, x := range xs {
			out[i] = x.(int) * 2
		}
		return out, nil
	}

	cases := []struct {
		name string
		p    *Predictor
	}{
		{"sequential", &Predictor{Identifier: "m", ToCall: double}},
		{"one worker", &Predictor{Identifier: "m", ToCall: double, NumWorkers: 1}},
		{"five workers", &Predictor{Identifier: "m", ToCall: double, NumWorkers: 5}},
		{"batch", &Predictor{Identifier: "m", ToCall: double, BatchCall: batched, BatchPredict: true}},
	}

	xs := []any{1, 2, 3, 4, 5, 6, 7, 8}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.p.Predict(context.Background(), xs)
			if err != nil {
				t.Fatal(err)
			}
			for i, x := range xs {
				want, err := tc.p.PredictOne(context.Background(), x)
				if err != nil {
					t.Fatal(err)
				}
				if got[i] != want {
					t.Errorf("element %d: batch gave %v, single gave %v", i, got[i], want)
				}
			}
		})
	}
}

func TestPredictPreservesOrderAcrossWorkers(t *testing.T) {
	p := &Predictor{
		Identifier: "sq",
		ToCall: func(ctx context.Context, x any) (any, error) {
			return x.(int) * x.(int), nil
		},
		NumWorkers: 4,
	}

	xs := make([]any, 100)
	for i := range xs {
		xs[i] = i
	}
	got, err := p.Predict(context.Background(), xs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range xs {
		if got[i] != i*i {
			t.Fatalf("element %d: expected %d, got %v", i, i*i, got[i])
		}
	}
}

func TestForwardRejectsShortBatchOutput(t *testing.T) {
	p := &Predictor{
		Identifier:   "short",
		ToCall:       addPredictor(0).ToCall,
		BatchPredict: true,
		BatchCall: func(ctx context.Context, xs []any) ([]any, error) {
			return xs[:1], nil
		},
	}
	if _, err := p.Forward(context.Background(), []any{1, 2, 3}, 0); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestPredictPropagatesCallableError(t *testing.T) {
	boom := errors.New("boom")
	p := &Predictor{
		Identifier: "failing",
		ToCall: func(ctx context.Context, x any) (any, error) {
			if x.(int) == 3 {
				return nil, boom
			}
			return x, nil
		},
		NumWorkers: 2,
	}
	if _, err := p.Predict(context.Background(), []any{1, 2, 3, 4}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestEncodeOutputUsesDatatype(t *testing.T) {
	p := &Predictor{
		Identifier: "vec",
		ToCall:     addPredictor(0).ToCall,
		Datatype:   codec.Array(codec.Float32, []int{2}),
	}
	enc, err := p.EncodeOutput([]float32{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := enc.([]byte); !ok {
		t.Fatalf("expected encoded bytes, got %T", enc)
	}
}

func TestSequentialModel(t *testing.T) {
	m, err := Sequential("chained", addPredictor(2), addPredictor(1))
	if err != nil {
		t.Fatal(err)
	}

	one, err := m.PredictOne(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if one != 4 {
		t.Errorf("expected 4, got %v", one)
	}

	got, err := m.Predict(context.Background(), []any{1, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []any{4, 4, 4, 4}) {
		t.Errorf("expected [4 4 4 4], got %v", got)
	}
}

func TestSequentialRejectsEmptyAndInvalidStages(t *testing.T) {
	if _, err := Sequential("empty"); !errors.Is(err, ErrInvalidPredictor) {
		t.Errorf("expected ErrInvalidPredictor, got %v", err)
	}
	if _, err := Sequential("bad", &Predictor{Identifier: "no-callable"}); !errors.Is(err, ErrInvalidPredictor) {
		t.Errorf("expected ErrInvalidPredictor, got %v", err)
	}
}

func TestCreatePredictJob(t *testing.T) {
	p := addPredictor(1)
	up := p.CreateFitJob(nil)
	j := p.CreatePredictJob("x", false, []string{"a", "b"}, up)

	if j.TypeID != "model" || j.Component != p.Identifier || j.Method != "predict" {
		t.Errorf("unexpected job target %s", j)
	}
	if j.Args["id_key"] != "x" || j.Args["overwrite"] != false {
		t.Errorf("unexpected args %v", j.Args)
	}
	if !reflect.DeepEqual(j.Args["ids"], []string{"a", "b"}) {
		t.Errorf("unexpected ids %v", j.Args["ids"])
	}
	if len(j.Dependencies) != 1 || j.Dependencies[0] != up.ID {
		t.Errorf("unexpected dependencies %v", j.Dependencies)
	}
}
