package cdc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/outfield-ai/outfield/jobs"
	"github.com/outfield-ai/outfield/observability"
)

// Listener is the slice of a listener the registry needs: identity,
// which collection it watches, and job creation for changed rows.
type Listener interface {
	Identifier() string
	Collection() string
	CreatePredictJobForIDs(ids []string) (*jobs.Job, error)
}

// Submitter receives the predict jobs the registry schedules; the jobs
// runner implements it.
type Submitter interface {
	Submit(ctx context.Context, jobs ...*jobs.Job) error
}

// Registry is the process-wide set of active listeners. Registering
// under an identifier that is already present replaces the previous
// listener, so re-registration is idempotent.
type Registry struct {
	submitter Submitter
	observer  observability.Observer

	mu        sync.RWMutex
	listeners map[string]Listener
}

// NewRegistry builds an empty registry scheduling onto the given
// submitter.
func NewRegistry(submitter Submitter) *Registry {
	return &Registry{
		submitter: submitter,
		listeners: make(map[string]Listener),
	}
}

// WithObserver attaches an observer notified of every intake event.
func (r *Registry) WithObserver(observer observability.Observer) *Registry {
	r.observer = observer
	return r
}

// Register adds a listener, replacing any previous listener with the
// same identifier.
func (r *Registry) Register(ctx context.Context, l Listener) error {
	r.mu.Lock()
	r.listeners[l.Identifier()] = l
	r.mu.Unlock()
	return nil
}

// Unregister removes a listener; unknown identifiers are ignored.
func (r *Registry) Unregister(identifier string) {
	r.mu.Lock()
	delete(r.listeners, identifier)
	r.mu.Unlock()
}

// Identifiers returns the registered listener identifiers, sorted.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.listeners))
	for id := range r.listeners {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// OnInsert schedules predict jobs for freshly inserted rows on every
// listener watching the collection.
func (r *Registry) OnInsert(ctx context.Context, collection string, ids []string) error {
	return r.dispatch(ctx, EventInsert, collection, ids)
}

// OnUpdate schedules predict jobs for changed rows on every listener
// watching the collection.
func (r *Registry) OnUpdate(ctx context.Context, collection string, ids []string) error {
	return r.dispatch(ctx, EventUpdate, collection, ids)
}

// OnEvent routes a decoded transport event. Listener registrations
// from other processes cannot be materialized here and are ignored;
// the datalayer resolves them on load. Removals drop the local
// registration so no further jobs are scheduled for that listener.
func (r *Registry) OnEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventInsert:
		return r.OnInsert(ctx, ev.Collection, ev.IDs)
	case EventUpdate:
		return r.OnUpdate(ctx, ev.Collection, ev.IDs)
	case EventListenerRemove:
		r.Unregister(ev.Listener)
		return nil
	default:
		return nil
	}
}

func (r *Registry) dispatch(ctx context.Context, kind EventKind, collection string, ids []string) (err error) {
	start := time.Now()
	defer func() {
		r.observe(kind, collection, time.Since(start), int64(len(ids)), err)
	}()

	if len(ids) == 0 {
		return nil
	}

	r.mu.RLock()
	matching := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		if l.Collection() == collection {
			matching = append(matching, l)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, l := range matching {
		j, err := l.CreatePredictJobForIDs(ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("cdc: listener %s: %w", l.Identifier(), err))
			continue
		}
		if j == nil {
			continue
		}
		if err := r.submitter.Submit(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("cdc: listener %s: %w", l.Identifier(), err))
		}
	}
	err = errors.Join(errs...)
	return err
}

func (r *Registry) observe(kind EventKind, collection string, d time.Duration, size int64, err error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveOperation(observability.OperationContext{
		Component: "cdc",
		Operation: string(kind),
		Resource:  collection,
		Duration:  d,
		Error:     err,
		Size:      size,
	})
}
