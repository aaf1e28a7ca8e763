package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingPerformer struct {
	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (p *recordingPerformer) Perform(ctx context.Context, job *Job) error {
	p.mu.Lock()
	p.order = append(p.order, job.Component)
	err := p.fail[job.Component]
	p.mu.Unlock()
	return err
}

func (p *recordingPerformer) performed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
	errs []error
}

func (l *recordingLogger) Error(msg string, err error, fields ...map[string]interface{}) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func TestRunnerReportsFailuresThroughLogger(t *testing.T) {
	boom := errors.New("boom")
	p := &recordingPerformer{fail: map[string]error{"bad": boom}}
	lg := &recordingLogger{}
	r := NewRunner(p, 2).WithLogger(lg)

	err := r.Submit(context.Background(),
		NewJob("model", "ok", "predict", nil),
		NewJob("model", "bad", "predict", nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	r.Wait()

	lg.mu.Lock()
	defer lg.mu.Unlock()
	if len(lg.msgs) != 1 {
		t.Fatalf("expected one failure report, got %v", lg.msgs)
	}
	if !errors.Is(lg.errs[0], boom) {
		t.Errorf("expected reported error %v, got %v", boom, lg.errs[0])
	}
}

func TestRunnerHonorsDependencyOrder(t *testing.T) {
	p := &recordingPerformer{}
	r := NewRunner(p, 4)

	upstream := NewJob("model", "up", "predict", nil)
	downstream := NewJob("model", "down", "predict", nil, upstream)

	if err := r.Submit(context.Background(), downstream, upstream); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	order := p.performed()
	if len(order) != 2 {
		t.Fatalf("expected 2 jobs performed, got %v", order)
	}
	if order[0] != "up" || order[1] != "down" {
		t.Errorf("expected upstream first, got %v", order)
	}
	if downstream.Status() != StatusSucceeded {
		t.Errorf("expected downstream success, got %s", downstream.Status())
	}
}

func TestRunnerFailedDependencySkipsDownstream(t *testing.T) {
	p := &recordingPerformer{fail: map[string]error{"up": errors.New("boom")}}
	r := NewRunner(p, 2)

	upstream := NewJob("model", "up", "predict", nil)
	downstream := NewJob("model", "down", "predict", nil, upstream)

	if err := r.Submit(context.Background(), upstream, downstream); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	for _, name := range p.performed() {
		if name == "down" {
			t.Fatal("downstream must not run after failed dependency")
		}
	}
	if downstream.Status() != StatusFailed {
		t.Errorf("expected downstream failed, got %s", downstream.Status())
	}
	if err := downstream.Err(); err == nil {
		t.Error("expected dependency failure error")
	}
}

func TestRunnerRejectsUnknownDependency(t *testing.T) {
	r := NewRunner(&recordingPerformer{}, 1)

	j := NewJob("model", "m", "predict", nil)
	j.Dependencies = []string{"no-such-job"}

	err := r.Submit(context.Background(), j)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestRunnerRejectsCycle(t *testing.T) {
	r := NewRunner(&recordingPerformer{}, 1)

	a := NewJob("model", "a", "predict", nil)
	b := NewJob("model", "b", "predict", nil)
	a.Dependencies = []string{b.ID}
	b.Dependencies = []string{a.ID}

	err := r.Submit(context.Background(), a, b)
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestRunnerResubmitIsIdempotent(t *testing.T) {
	p := &recordingPerformer{}
	r := NewRunner(p, 2)

	j := NewJob("model", "m", "predict", nil)
	if err := r.Submit(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if err := r.Submit(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	if got := len(p.performed()); got != 1 {
		t.Errorf("expected 1 execution, got %d", got)
	}
}

func TestRunnerDependencyOnPreviouslySubmittedJob(t *testing.T) {
	p := &recordingPerformer{}
	r := NewRunner(p, 2)

	up := NewJob("model", "up", "predict", nil)
	if err := r.Submit(context.Background(), up); err != nil {
		t.Fatal(err)
	}
	down := NewJob("model", "down", "predict", nil, up)
	if err := r.Submit(context.Background(), down); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	if down.Status() != StatusSucceeded {
		t.Errorf("expected success, got %s", down.Status())
	}
}

func TestRunnerBoundedWorkers(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	p := PerformerFunc(func(ctx context.Context, job *Job) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})

	r := NewRunner(p, 2)
	js := make([]*Job, 8)
	for i := range js {
		js[i] = NewJob("model", fmt.Sprintf("m%d", i), "predict", nil)
	}
	if err := r.Submit(context.Background(), js...); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent jobs, saw %d", peak)
	}
}

func TestJobWaitRespectsContext(t *testing.T) {
	j := NewJob("model", "m", "predict", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := j.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
