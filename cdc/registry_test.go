package cdc

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/outfield-ai/outfield/jobs"
)

type stubListener struct {
	identifier string
	collection string
	active     bool

	jobIDs [][]string
}

func (l *stubListener) Identifier() string { return l.identifier }

func (l *stubListener) Collection() string { return l.collection }

func (l *stubListener) CreatePredictJobForIDs(ids []string) (*jobs.Job, error) {
	if !l.active {
		return nil, nil
	}
	l.jobIDs = append(l.jobIDs, ids)
	return jobs.NewJob("model", l.identifier, "predict", map[string]any{"ids": ids}), nil
}

type captureSubmitter struct {
	jobs []*jobs.Job
	err  error
}

func (s *captureSubmitter) Submit(ctx context.Context, js ...*jobs.Job) error {
	s.jobs = append(s.jobs, js...)
	return s.err
}

func TestOnInsertSchedulesForMatchingCollection(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRegistry(sub)

	docs := &stubListener{identifier: "embed/txt", collection: "docs", active: true}
	other := &stubListener{identifier: "embed/img", collection: "images", active: true}
	_ = r.Register(context.Background(), docs)
	_ = r.Register(context.Background(), other)

	if err := r.OnInsert(context.Background(), "docs", []string{"1", "2"}); err != nil {
		t.Fatal(err)
	}

	if len(sub.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(sub.jobs))
	}
	if sub.jobs[0].Component != "embed/txt" {
		t.Errorf("job scheduled for wrong listener: %s", sub.jobs[0])
	}
	if len(other.jobIDs) != 0 {
		t.Error("listener on another collection must not be triggered")
	}
}

func TestRegisterReplacesExisting(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRegistry(sub)

	first := &stubListener{identifier: "embed/txt", collection: "docs", active: true}
	second := &stubListener{identifier: "embed/txt", collection: "docs", active: true}
	_ = r.Register(context.Background(), first)
	_ = r.Register(context.Background(), second)

	if got := r.Identifiers(); !reflect.DeepEqual(got, []string{"embed/txt"}) {
		t.Fatalf("expected single registration, got %v", got)
	}

	if err := r.OnUpdate(context.Background(), "docs", []string{"1"}); err != nil {
		t.Fatal(err)
	}
	if len(first.jobIDs) != 0 || len(second.jobIDs) != 1 {
		t.Error("expected replacement listener to receive the event")
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry(&captureSubmitter{})
	l := &stubListener{identifier: "embed/txt", collection: "docs", active: true}
	_ = r.Register(context.Background(), l)

	r.Unregister("embed/txt")
	r.Unregister("never-registered")

	if got := r.Identifiers(); len(got) != 0 {
		t.Errorf("expected empty registry, got %v", got)
	}
}

func TestInactiveListenerSchedulesNothing(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRegistry(sub)
	_ = r.Register(context.Background(), &stubListener{identifier: "embed/txt", collection: "docs"})

	if err := r.OnInsert(context.Background(), "docs", []string{"1"}); err != nil {
		t.Fatal(err)
	}
	if len(sub.jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(sub.jobs))
	}
}

func TestDispatchSurfacesSubmitError(t *testing.T) {
	boom := errors.New("queue full")
	r := NewRegistry(&captureSubmitter{err: boom})
	_ = r.Register(context.Background(), &stubListener{identifier: "embed/txt", collection: "docs", active: true})

	if err := r.OnInsert(context.Background(), "docs", []string{"1"}); !errors.Is(err, boom) {
		t.Errorf("expected submit error, got %v", err)
	}
}

func TestOnEventRouting(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRegistry(sub)
	l := &stubListener{identifier: "embed/txt", collection: "docs", active: true}
	_ = r.Register(context.Background(), l)

	err := r.OnEvent(context.Background(), Event{Kind: EventInsert, Collection: "docs", IDs: []string{"1"}})
	if err != nil {
		t.Fatal(err)
	}
	err = r.OnEvent(context.Background(), Event{Kind: EventListenerAdd, Listener: "other/x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.jobs) != 1 {
		t.Errorf("expected one job from the insert event, got %d", len(sub.jobs))
	}

	err = r.OnEvent(context.Background(), Event{Kind: EventListenerRemove, Listener: "embed/txt"})
	if err != nil {
		t.Fatal(err)
	}
	if ids := r.Identifiers(); len(ids) != 0 {
		t.Errorf("expected remove event to unregister, got %v", ids)
	}
}

func TestEventCodecRoundTrip(t *testing.T) {
	ev := Event{Kind: EventUpdate, Collection: "docs", IDs: []string{"a", "b"}}
	body, err := EncodeEvent(ev)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, ev) {
		t.Errorf("expected %+v, got %+v", ev, got)
	}

	if _, err := DecodeEvent([]byte(`{"kind":"drop"}`)); err == nil {
		t.Error("expected unknown kind to fail")
	}
	if _, err := DecodeEvent([]byte("not json")); err == nil {
		t.Error("expected malformed payload to fail")
	}
}
