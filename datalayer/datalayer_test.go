package datalayer

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/outfield-ai/outfield/codec"
	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/listener"
	"github.com/outfield-ai/outfield/model"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/vectorindex"
)

func newTestDatalayer(t *testing.T) *Datalayer {
	t.Helper()
	d, err := New(Config{Backend: BackendMemory, NumWorkers: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func addTwo() *model.Predictor {
	return &model.Predictor{
		Identifier: "add2",
		ToCall: func(ctx context.Context, x any) (any, error) {
			return x.(int) + 2, nil
		},
	}
}

// onehot embeds small ints as 4-dimensional one-hot vectors.
func onehot() *model.Predictor {
	return &model.Predictor{
		Identifier: "onehot",
		Datatype:   codec.Vector([]int{4}),
		ToCall: func(ctx context.Context, x any) (any, error) {
			vec := make([]float32, 4)
			vec[x.(int)%4] = 1
			return vec, nil
		},
	}
}

func TestInsertTriggersListenerOutputs(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("add2"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}

	ids, err := d.Insert(ctx, "docs", []document.Document{{"x": 1}})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	rows, err := d.Select("docs").SelectUsingIDs(ids).Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := rows[0].Doc.Get("_outputs.x.add2.0")
	if !ok {
		t.Fatalf("expected computed output in %v", rows[0].Doc)
	}
	if got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestListenerBackfillsExistingRows(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if _, err := d.Insert(ctx, "docs", []document.Document{{"x": 10}, {"x": 20}}); err != nil {
		t.Fatal(err)
	}

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("add2"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	rows, err := d.Select("docs").Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if !row.Doc.Has("_outputs.x.add2.0") {
			t.Errorf("row %s missing backfilled output", row.ID)
		}
	}
}

func TestVectorIndexDimensions(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, onehot()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("onehot"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	vi := vectorindex.New("idx", vectorindex.RefResolved(l))
	if err := d.Add(ctx, vi); err != nil {
		t.Fatal(err)
	}

	dims, err := vi.Dimensions()
	if err != nil {
		t.Fatal(err)
	}
	if dims != 4 {
		t.Errorf("expected 4 dimensions, got %d", dims)
	}
}

func TestInsertThenSearchEndToEnd(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, onehot()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("onehot"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	if err := d.Add(ctx, vectorindex.New("idx", vectorindex.RefResolved(l))); err != nil {
		t.Fatal(err)
	}

	_, err := d.Insert(ctx, "docs", []document.Document{
		{"_id": "zero", "x": 0},
		{"_id": "one", "x": 1},
		{"_id": "two", "x": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	vi, err := d.VectorIndex("idx")
	if err != nil {
		t.Fatal(err)
	}
	ids, scores, err := vi.GetNearest(ctx, document.Document{"x": 5}, d, "", nil, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	// 5 % 4 == 1, so the query matches the row embedding x=1.
	if !reflect.DeepEqual(ids, []string{"one"}) {
		t.Errorf("expected [one], got %v", ids)
	}
	if len(scores) != 1 {
		t.Errorf("expected parallel scores, got %v", scores)
	}
}

func TestVectorIndexBackfillsExistingOutputs(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, onehot()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("onehot"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert(ctx, "docs", []document.Document{{"_id": "three", "x": 3}}); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	// Index created after outputs already exist.
	vi := vectorindex.New("idx", vectorindex.RefResolved(l))
	if err := d.Add(ctx, vi); err != nil {
		t.Fatal(err)
	}

	ids, _, err := vi.GetNearest(ctx, document.Document{"x": 3}, d, "", nil, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"three"}) {
		t.Errorf("expected backfilled row, got %v", ids)
	}
}

func TestPredictAndListenRegistersThroughDatalayer(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	p := addTwo()
	if err := d.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert(ctx, "docs", []document.Document{{"x": 1}}); err != nil {
		t.Fatal(err)
	}

	err := p.PredictAndListen(ctx, document.NewKey("x"), d.Select("docs"), d)
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	if _, err := d.Listener("add2/x"); err != nil {
		t.Fatalf("expected listener registered, got %v", err)
	}

	// Future inserts are picked up by the registered listener.
	ids, err := d.Insert(ctx, "docs", []document.Document{{"x": 7}})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	rows, err := d.Select("docs").SelectUsingIDs(ids).Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := rows[0].Doc.Get("_outputs.x.add2.0"); got != 9 {
		t.Errorf("expected 9, got %v", got)
	}
}

func TestRemoveListenerStopsSchedulingAndCleansOutputs(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("add2"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}

	ids, err := d.Insert(ctx, "docs", []document.Document{{"x": 1}})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()

	if got := d.Registry().Identifiers(); !reflect.DeepEqual(got, []string{"add2/x"}) {
		t.Fatalf("expected registered subscription, got %v", got)
	}

	if err := d.Remove(ctx, TypeListener, "add2/x"); err != nil {
		t.Fatal(err)
	}

	if got := d.Registry().Identifiers(); len(got) != 0 {
		t.Errorf("expected subscription unregistered, got %v", got)
	}
	if _, err := d.Listener("add2/x"); err == nil {
		t.Error("expected listener to be dropped")
	}

	rows, err := d.Select("docs").SelectUsingIDs(ids).Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Doc.Has("_outputs.x.add2.0") {
		t.Error("expected teardown to strip stored outputs")
	}

	// Inserts after removal no longer schedule predict jobs.
	ids, err = d.Insert(ctx, "docs", []document.Document{{"x": 5}})
	if err != nil {
		t.Fatal(err)
	}
	d.Wait()
	rows, err = d.Select("docs").SelectUsingIDs(ids).Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Doc.Has("_outputs.x.add2.0") {
		t.Error("expected no outputs for rows inserted after removal")
	}
}

func TestRemoveUnknownComponent(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Remove(ctx, TypeListener, "nope/x"); err == nil {
		t.Error("expected error removing unknown listener")
	}
	if err := d.Remove(ctx, TypeModel, "nope"); err == nil {
		t.Error("expected error removing unknown model")
	}
	if err := d.Remove(ctx, "gadget", "x"); err == nil {
		t.Error("expected error for unknown component type")
	}
}

func TestVariablesResolveOnListenerCreate(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)
	d.SetVariable("collection", "docs")

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert(ctx, "docs", []document.Document{{"x": 1}}); err != nil {
		t.Fatal(err)
	}

	l := listener.New(listener.RefByIdentifier("add2"), document.NewKey("x"), d.Select("$collection"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	rows, err := d.Select("docs").Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !rows[0].Doc.Has("_outputs.x.add2.0") {
		t.Error("expected output computed through variable-bound select")
	}
}

type captureObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (c *captureObserver) ObserveOperation(op observability.OperationContext) {
	c.mu.Lock()
	c.ops = append(c.ops, op)
	c.mu.Unlock()
}

func (c *captureObserver) find(component, operation string) (observability.OperationContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range c.ops {
		if op.Component == component && op.Operation == operation {
			return op, true
		}
	}
	return observability.OperationContext{}, false
}

func TestJobExecutionIsObserved(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)
	obs := &captureObserver{}
	d.WithObserver(obs)

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	l := listener.New(listener.RefByIdentifier("add2"), document.NewKey("x"), d.Select("docs"))
	if err := d.Add(ctx, l); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert(ctx, "docs", []document.Document{{"x": 1}}); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	job, ok := obs.find("jobs", "perform")
	if !ok {
		t.Fatal("expected a job execution operation")
	}
	if job.Resource != "add2" || job.SubResource != "predict" || job.Error != nil {
		t.Errorf("unexpected job operation %+v", job)
	}

	pred, ok := obs.find("model", "predict")
	if !ok {
		t.Fatal("expected a prediction operation")
	}
	if pred.Resource != "add2" || pred.SubResource != "x" || pred.Size != 1 {
		t.Errorf("unexpected prediction operation %+v", pred)
	}
}

func TestLoadAndLookups(t *testing.T) {
	ctx := context.Background()
	d := newTestDatalayer(t)

	if err := d.Add(ctx, addTwo()); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Load(TypeModel, "add2"); err != nil {
		t.Errorf("expected model loadable, got %v", err)
	}
	if _, err := d.Load(TypeModel, "missing"); err == nil {
		t.Error("expected error for unknown model")
	}
	if _, err := d.Load("gadget", "x"); err == nil {
		t.Error("expected error for unknown component type")
	}
	if err := d.Add(ctx, struct{}{}); err == nil {
		t.Error("expected error adding unsupported component")
	}
}

func TestAddInvalidModelFails(t *testing.T) {
	d := newTestDatalayer(t)
	err := d.Add(context.Background(), &model.Predictor{Identifier: "broken"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
