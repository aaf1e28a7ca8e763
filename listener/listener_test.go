package listener

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/model"
	"github.com/outfield-ai/outfield/query"
)

type stubSelect struct {
	outputFields map[string]string
	variables    []string

	bound      bool
	cleanedFor string
}

func (s *stubSelect) Collection() string { return "docs" }

func (s *stubSelect) Execute(ctx context.Context) ([]query.Row, error) { return nil, nil }

func (s *stubSelect) SelectUsingIDs(ids []string) query.Select { return s }

func (s *stubSelect) SelectIDsOfMissingOutputs(f string) query.Select { return s }

func (s *stubSelect) ModelUpdate(ctx context.Context, ids []string, idKey, m string, v int, outputs []any) error {
	return nil
}

func (s *stubSelect) OutputFields() map[string]string { return s.outputFields }
func (s *stubSelect) Variables() []string             { return s.variables }

func (s *stubSelect) SetVariables(query.VariableResolver) (query.Select, error) {
	s.bound = true
	return s, nil
}

type cleanableSelect struct {
	stubSelect
}

func (s *cleanableSelect) ModelCleanup(ctx context.Context, m string, key document.Key) error {
	s.cleanedFor = m
	return nil
}

type stubDatalayer struct {
	models map[string]*model.Predictor
}

func (d *stubDatalayer) Model(identifier string) (*model.Predictor, error) {
	p, ok := d.models[identifier]
	if !ok {
		return nil, errors.New("no such model")
	}
	return p, nil
}

func (d *stubDatalayer) Variable(name string) (string, bool) { return "", false }

func identity(identifier string) *model.Predictor {
	return &model.Predictor{
		Identifier: identifier,
		ToCall: func(ctx context.Context, x any) (any, error) {
			return x, nil
		},
	}
}

func TestIdentifierCombinesModelAndIDKey(t *testing.T) {
	l := New(RefByIdentifier("embed"), document.NewKey("txt"), &stubSelect{})
	if got := l.Identifier(); got != "embed/txt" {
		t.Errorf("expected embed/txt, got %s", got)
	}

	l = New(RefByIdentifier("embed"), document.NewKey("_outputs.txt.upstream"), &stubSelect{})
	if got := l.Identifier(); got != "embed/txt" {
		t.Errorf("expected output reference to collapse, got %s", got)
	}
}

func TestOutputFieldRequiresResolvedModel(t *testing.T) {
	l := New(RefByIdentifier("embed"), document.NewKey("txt"), &stubSelect{})
	if _, err := l.OutputField(); !errors.Is(err, ErrUnresolvedModel) {
		t.Fatalf("expected ErrUnresolvedModel, got %v", err)
	}

	p := identity("embed")
	p.Version = 2
	l.Model = RefResolved(p)
	field, err := l.OutputField()
	if err != nil {
		t.Fatal(err)
	}
	if field != "_outputs.txt.embed.2" {
		t.Errorf("unexpected output field %s", field)
	}
}

func TestDependencies(t *testing.T) {
	sel := &stubSelect{outputFields: map[string]string{"img": "clip"}}
	key := document.NewKeySequence("_outputs.txt.embed", "title")
	l := New(RefByIdentifier("rank"), key, sel)

	deps := l.Dependencies()
	sort.Strings(deps)
	want := []string{"clip/img", "embed/txt"}
	if !reflect.DeepEqual(deps, want) {
		t.Errorf("expected %v, got %v", want, deps)
	}
}

func TestScheduleJobs(t *testing.T) {
	l := New(RefResolved(identity("embed")), document.NewKey("txt"), &stubSelect{})

	up := identity("embed").CreateFitJob(nil)
	js, err := l.ScheduleJobs(up)
	if err != nil {
		t.Fatal(err)
	}
	if len(js) != 1 {
		t.Fatalf("expected exactly one job, got %d", len(js))
	}
	j := js[0]
	if j.Component != "embed" || j.Method != "predict" {
		t.Errorf("unexpected job target %s", j)
	}
	if len(j.Dependencies) != 1 || j.Dependencies[0] != up.ID {
		t.Errorf("unexpected dependencies %v", j.Dependencies)
	}

	l.Active = false
	js, err = l.ScheduleJobs()
	if err != nil {
		t.Fatal(err)
	}
	if js != nil {
		t.Errorf("inactive listener must schedule nothing, got %v", js)
	}
}

func TestScheduleJobsUnresolvedModelFails(t *testing.T) {
	l := New(RefByIdentifier("embed"), document.NewKey("txt"), &stubSelect{})
	if _, err := l.ScheduleJobs(); !errors.Is(err, ErrUnresolvedModel) {
		t.Errorf("expected ErrUnresolvedModel, got %v", err)
	}
}

func TestPreCreateResolvesModelAndBindsVariables(t *testing.T) {
	sel := &stubSelect{variables: []string{"collection"}}
	l := New(RefByIdentifier("embed"), document.NewKey("txt"), sel)
	db := &stubDatalayer{models: map[string]*model.Predictor{"embed": identity("embed")}}

	if err := l.PreCreate(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if !l.Model.IsResolved() {
		t.Error("expected model resolved")
	}
	if !sel.bound {
		t.Error("expected select variables bound")
	}
}

func TestPreCreateUnknownModel(t *testing.T) {
	l := New(RefByIdentifier("missing"), document.NewKey("txt"), &stubSelect{})
	if err := l.PreCreate(context.Background(), &stubDatalayer{}); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestCleanup(t *testing.T) {
	plain := New(RefResolved(identity("embed")), document.NewKey("txt"), &stubSelect{})
	if err := plain.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup without capability must be a no-op, got %v", err)
	}

	sel := &cleanableSelect{}
	l := New(RefResolved(identity("embed")), document.NewKey("txt"), sel)
	if err := l.Cleanup(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sel.cleanedFor != "embed" {
		t.Errorf("expected cleanup for embed, got %q", sel.cleanedFor)
	}
}
