// Package jobs models deferred units of work produced by listeners and
// predictors: which component to invoke, which method, with which
// arguments, and which upstream jobs must complete first.
//
// The in-process Runner executes jobs on a bounded worker pool while
// honoring the dependency partial order. Distributed schedulers can
// consume the same Job values; only the shape is prescribed here.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job identifies a component method invocation to be run later.
// Submitting the same Job value twice is idempotent; the ID is the
// dedup key.
type Job struct {
	// ID uniquely identifies this job for deduplication and
	// dependency references.
	ID string

	// TypeID is the component type, e.g. "model" or "listener".
	TypeID string

	// Component is the component identifier to invoke.
	Component string

	// Method is the method name on the component, e.g. "predict".
	Method string

	// Args carries keyword-style arguments for the method.
	Args map[string]any

	// Dependencies lists the IDs of jobs that must succeed before
	// this job may run.
	Dependencies []string

	mu     sync.Mutex
	status Status
	err    error
	done   chan struct{}
}

// NewJob builds a pending job with a fresh ID, declaring the given
// jobs as prerequisites.
func NewJob(typeID, component, method string, args map[string]any, deps ...*Job) *Job {
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return &Job{
		ID:           uuid.NewString(),
		TypeID:       typeID,
		Component:    component,
		Method:       method,
		Args:         args,
		Dependencies: ids,
		status:       StatusPending,
		done:         make(chan struct{}),
	}
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the job's failure, nil while pending or on success.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job completes or the context is cancelled,
// returning the job's error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.status = StatusRunning
	j.mu.Unlock()
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	if err != nil {
		j.status = StatusFailed
		j.err = err
	} else {
		j.status = StatusSucceeded
	}
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) String() string {
	return fmt.Sprintf("%s/%s.%s[%s]", j.TypeID, j.Component, j.Method, j.ID)
}
