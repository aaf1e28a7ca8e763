// Package vectordb defines the vector search contract a vector index
// runs on, and provides the default in-memory exact searcher. Backend
// adapters (qdrant) implement the same contract.
package vectordb

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a nearest-by-id search references an id
// the searcher never indexed.
var ErrNotFound = errors.New("vectordb: id not found")

// Measure is the similarity measure a searcher ranks by.
type Measure string

const (
	Cosine Measure = "cosine"
	Dot    Measure = "dot"
	L2     Measure = "l2"
)

// ParseMeasure validates a configured measure string.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case Cosine, Dot, L2:
		return Measure(s), nil
	default:
		return "", fmt.Errorf("vectordb: unknown measure %q", s)
	}
}

// Item is one indexed vector.
type Item struct {
	ID     string
	Vector []float32
}

// Searcher indexes vectors and answers nearest-neighbor queries.
// Results are parallel (ids, scores) slices, best-first for the
// searcher's measure, at most limit long, and restricted to withinIDs
// when that is non-nil.
type Searcher interface {
	// Add upserts items; re-adding an id replaces its vector.
	Add(ctx context.Context, items []Item) error

	// Delete removes ids; unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// FindNearestFromID searches around an already-indexed vector.
	FindNearestFromID(ctx context.Context, id string, withinIDs []string, limit int) ([]string, []float32, error)

	// FindNearestFromVector searches around a probe vector.
	FindNearestFromVector(ctx context.Context, vec []float32, withinIDs []string, limit int) ([]string, []float32, error)
}
