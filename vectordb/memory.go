package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemorySearcher is an exact brute-force Searcher. It is the default
// fast_vector_searcher backend and the reference the adapter tests
// compare against.
type MemorySearcher struct {
	measure    Measure
	dimensions int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemorySearcher builds an empty searcher for vectors of the given
// dimensionality.
func NewMemorySearcher(measure Measure, dimensions int) *MemorySearcher {
	return &MemorySearcher{
		measure:    measure,
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
	}
}

// Dimensions returns the vector size this searcher was built for.
func (s *MemorySearcher) Dimensions() int { return s.dimensions }

// Add upserts items, rejecting vectors of the wrong dimensionality.
func (s *MemorySearcher) Add(ctx context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if len(it.Vector) != s.dimensions {
			return fmt.Errorf("vectordb: vector for %q has %d dimensions, index expects %d", it.ID, len(it.Vector), s.dimensions)
		}
		vec := make([]float32, len(it.Vector))
		copy(vec, it.Vector)
		s.vectors[it.ID] = vec
	}
	return nil
}

// Delete removes ids, ignoring unknown ones.
func (s *MemorySearcher) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *MemorySearcher) FindNearestFromID(ctx context.Context, id string, withinIDs []string, limit int) ([]string, []float32, error) {
	s.mu.RLock()
	vec, ok := s.vectors[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.FindNearestFromVector(ctx, vec, withinIDs, limit)
}

func (s *MemorySearcher) FindNearestFromVector(ctx context.Context, vec []float32, withinIDs []string, limit int) ([]string, []float32, error) {
	if len(vec) != s.dimensions {
		return nil, nil, fmt.Errorf("vectordb: probe vector has %d dimensions, index expects %d", len(vec), s.dimensions)
	}

	var within map[string]struct{}
	if withinIDs != nil {
		within = make(map[string]struct{}, len(withinIDs))
		for _, id := range withinIDs {
			within[id] = struct{}{}
		}
	}

	type hit struct {
		id    string
		score float32
	}

	s.mu.RLock()
	hits := make([]hit, 0, len(s.vectors))
	for id, v := range s.vectors {
		if within != nil {
			if _, ok := within[id]; !ok {
				continue
			}
		}
		hits = append(hits, hit{id: id, score: score(s.measure, vec, v)})
	}
	s.mu.RUnlock()

	// Best-first: higher is better for cosine and dot, lower for l2.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			if s.measure == L2 {
				return hits[i].score < hits[j].score
			}
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]string, len(hits))
	scores := make([]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.id
		scores[i] = h.score
	}
	return ids, scores, nil
}

func score(m Measure, a, b []float32) float32 {
	switch m {
	case Dot:
		return dot(a, b)
	case L2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	default:
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float32) float32 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}
