package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Performer executes a single job. The datalayer implements this by
// resolving the job's component and invoking the named method.
type Performer interface {
	Perform(ctx context.Context, job *Job) error
}

// PerformerFunc adapts a function to the Performer interface.
type PerformerFunc func(ctx context.Context, job *Job) error

func (f PerformerFunc) Perform(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Logger is the logging surface the runner reports job failures
// through. The logger package's *Logger satisfies it.
type Logger interface {
	Error(msg string, err error, fields ...map[string]interface{})
}

// Runner executes jobs in-process on a bounded worker pool. A job does
// not start before all of its declared dependencies have succeeded; a
// failed dependency fails the job without running it.
type Runner struct {
	performer Performer
	sem       *semaphore.Weighted
	log       Logger

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewRunner builds a runner with at most workers concurrent jobs.
// Workers below 1 are treated as 1.
func NewRunner(performer Performer, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		performer: performer,
		sem:       semaphore.NewWeighted(int64(workers)),
		jobs:      make(map[string]*Job),
	}
}

// WithLogger routes job failure reports through log instead of the
// standard logger.
func (r *Runner) WithLogger(log Logger) *Runner {
	r.log = log
	return r
}

// Submit validates and enqueues a set of jobs that may depend on each
// other or on previously submitted jobs. Cycles and unknown upstream
// references are rejected before anything runs. Jobs whose ID is
// already known are skipped, making re-submission idempotent.
func (r *Runner) Submit(ctx context.Context, jobs ...*Job) error {
	r.mu.Lock()

	fresh := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := r.jobs[j.ID]; ok {
			continue
		}
		fresh = append(fresh, j)
	}

	if err := validateGraph(fresh, r.jobs); err != nil {
		r.mu.Unlock()
		return err
	}

	for _, j := range fresh {
		r.jobs[j.ID] = j
	}
	r.mu.Unlock()

	for _, j := range fresh {
		r.wg.Add(1)
		go r.run(ctx, j)
	}
	return nil
}

// Job looks up a submitted job by ID.
func (r *Runner) Job(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Wait blocks until every submitted job has completed.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, j *Job) {
	defer r.wg.Done()

	for _, depID := range j.Dependencies {
		r.mu.Lock()
		dep := r.jobs[depID]
		r.mu.Unlock()

		if err := dep.Wait(ctx); err != nil {
			j.finish(fmt.Errorf("jobs: dependency %s failed: %w", depID, err))
			return
		}
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		j.finish(err)
		return
	}
	defer r.sem.Release(1)

	j.setRunning()
	err := r.performer.Perform(ctx, j)
	if err != nil {
		r.logError(j, err)
	}
	j.finish(err)
}

func (r *Runner) logError(j *Job, err error) {
	if r.log == nil {
		log.Printf("ERROR: job %s failed: %v", j, err)
		return
	}
	r.log.Error("job failed", err, map[string]interface{}{"job": j.String()})
}
