package jobs

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a job set's dependencies form a cycle. A
// cyclic graph is a configuration error and is rejected up front, not
// left to deadlock.
var ErrCycle = errors.New("jobs: dependency cycle")

// ErrUnknownDependency is returned when a job declares an upstream job
// that is neither in the submitted set nor already known to the runner.
var ErrUnknownDependency = errors.New("jobs: unknown dependency")

// validateGraph checks a job set against the already-known jobs:
// every dependency must resolve, and the subgraph formed by the new
// jobs must be acyclic.
func validateGraph(jobs []*Job, known map[string]*Job) error {
	inSet := make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		inSet[j.ID] = j
	}

	for _, j := range jobs {
		for _, dep := range j.Dependencies {
			if _, ok := inSet[dep]; ok {
				continue
			}
			if _, ok := known[dep]; ok {
				continue
			}
			return fmt.Errorf("%w: job %s depends on %s", ErrUnknownDependency, j.ID, dep)
		}
	}

	// Depth-first cycle search over the new jobs. Dependencies on
	// already-known jobs cannot close a cycle because known jobs never
	// point back into the new set.
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(jobs))

	var visit func(j *Job) error
	visit = func(j *Job) error {
		color[j.ID] = grey
		for _, dep := range j.Dependencies {
			next, ok := inSet[dep]
			if !ok {
				continue
			}
			switch color[next.ID] {
			case grey:
				return fmt.Errorf("%w: via job %s", ErrCycle, next.ID)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[j.ID] = black
		return nil
	}

	for _, j := range jobs {
		if color[j.ID] == white {
			if err := visit(j); err != nil {
				return err
			}
		}
	}
	return nil
}
