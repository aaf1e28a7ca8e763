package qdrant

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/outfield-ai/outfield/vectordb"
)

const (
	upsertBatchSize = 100

	// rowIDKey is the payload field carrying the original row id.
	// Qdrant point ids must be numbers or UUIDs, so the row id is
	// hashed into a deterministic UUID and kept here verbatim.
	rowIDKey = "row_id"
)

// pointNamespace seeds the row-id to point-id UUID derivation.
var pointNamespace = uuid.MustParse("7e9f0a26-1f62-4c5b-9f0e-3a8f1d2b4c6d")

// Searcher answers nearest-neighbor queries for one vector index
// against its Qdrant collection.
type Searcher struct {
	client     *Client
	collection string
}

var _ vectordb.Searcher = (*Searcher)(nil)

// NewSearcher binds a searcher to the index's collection, creating the
// collection if needed.
func NewSearcher(ctx context.Context, client *Client, identifier string, measure vectordb.Measure, dimensions int) (*Searcher, error) {
	name := client.collectionName(identifier)
	if err := client.EnsureCollection(ctx, name, measure, dimensions); err != nil {
		return nil, err
	}
	return &Searcher{client: client, collection: name}, nil
}

// pointID derives the Qdrant point id for a row id.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

// Add upserts items in batches; re-adding an id replaces its vector.
func (s *Searcher) Add(ctx context.Context, items []vectordb.Item) error {
	if len(items) == 0 {
		return nil
	}

	for start := 0; start < len(items); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(items) {
			end = len(items)
		}

		batch := items[start:end]
		points := make([]*qdrant.PointStruct, 0, len(batch))
		for _, item := range batch {
			points = append(points, &qdrant.PointStruct{
				Id:      pointID(item.ID),
				Vectors: qdrant.NewVectors(item.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{rowIDKey: item.ID}),
			})
		}

		wait := true
		req := &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           &wait,
		}
		if _, err := s.client.api.Upsert(ctx, req); err != nil {
			return fmt.Errorf("[Qdrant] batch upsert failed at [%d:%d]: %w", start, end, err)
		}
		log.Printf("[Qdrant] Inserted batch [%d:%d] (collection=%s)", start, end, s.collection)
	}
	return nil
}

// Delete removes ids; unknown ids are ignored.
func (s *Searcher) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, pointID(id))
	}

	wait := true
	req := &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: qdrantIDs},
			},
		},
		Wait: &wait,
	}
	if _, err := s.client.api.Delete(ctx, req); err != nil {
		return fmt.Errorf("[Qdrant] delete failed: %w", err)
	}
	return nil
}

// FindNearestFromID searches around an already-indexed vector. It
// returns vectordb.ErrNotFound when the id was never indexed, so
// callers can fall back to recomputing the vector.
func (s *Searcher) FindNearestFromID(ctx context.Context, id string, withinIDs []string, limit int) ([]string, []float32, error) {
	points, err := s.client.api.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("[Qdrant] point lookup failed: %w", err)
	}
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", vectordb.ErrNotFound, id)
	}

	vector := points[0].GetVectors().GetVector().GetData()
	if len(vector) == 0 {
		return nil, nil, fmt.Errorf("[Qdrant] point %q has no vector", id)
	}
	return s.FindNearestFromVector(ctx, vector, withinIDs, limit)
}

// FindNearestFromVector searches around a probe vector, best-first for
// the collection's distance, at most limit results.
func (s *Searcher) FindNearestFromVector(ctx context.Context, vec []float32, withinIDs []string, limit int) ([]string, []float32, error) {
	if limit <= 0 {
		return nil, nil, nil
	}

	max := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &max,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if withinIDs != nil {
		allowed := make([]*qdrant.PointId, 0, len(withinIDs))
		for _, id := range withinIDs {
			allowed = append(allowed, pointID(id))
		}
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewHasID(allowed...)},
		}
	}

	resp, err := s.client.api.Query(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("[Qdrant] search failed: %w", err)
	}
	return parseSearchResults(resp)
}

// parseSearchResults reads row ids out of the point payloads.
func parseSearchResults(resp []*qdrant.ScoredPoint) ([]string, []float32, error) {
	ids := make([]string, 0, len(resp))
	scores := make([]float32, 0, len(resp))
	for _, r := range resp {
		id := r.GetPayload()[rowIDKey].GetStringValue()
		if id == "" {
			return nil, nil, fmt.Errorf("[Qdrant] point %v is missing its %s payload", r.GetId(), rowIDKey)
		}
		ids = append(ids, id)
		scores = append(scores, r.GetScore())
	}
	return ids, scores, nil
}
