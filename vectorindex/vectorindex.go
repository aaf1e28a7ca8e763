// Package vectorindex maintains a nearest-neighbor index over the
// outputs of one listener, with an optional second listener whose
// model produces query vectors compatible with the indexed ones.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/listener"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/vectordb"
)

// ErrUnresolvedListener is returned when an index is used before its
// string listener references were resolved via OnLoad.
var ErrUnresolvedListener = errors.New("vectorindex: listener reference not resolved")

// ErrModelsKeysMismatch is returned when the derived model and key
// lists disagree in length; searching over mismatched lists would pair
// inputs with the wrong models.
var ErrModelsKeysMismatch = errors.New("vectorindex: models and keys length mismatch")

// ListenerRef is either an unresolved listener identifier or a
// resolved listener.
type ListenerRef struct {
	identifier string
	listener   *listener.Listener
}

// RefByIdentifier builds a reference resolved later by OnLoad.
func RefByIdentifier(identifier string) ListenerRef {
	return ListenerRef{identifier: identifier}
}

// RefResolved wraps an already-constructed listener.
func RefResolved(l *listener.Listener) ListenerRef {
	return ListenerRef{identifier: l.Identifier(), listener: l}
}

// IsZero reports whether the reference was never set.
func (r ListenerRef) IsZero() bool { return r.identifier == "" && r.listener == nil }

// Identifier returns the referenced listener's identifier.
func (r ListenerRef) Identifier() string { return r.identifier }

// Resolved returns the listener, or ErrUnresolvedListener for a bare
// identifier.
func (r ListenerRef) Resolved() (*listener.Listener, error) {
	if r.listener == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedListener, r.identifier)
	}
	return r.listener, nil
}

// Datalayer is the slice of the datalayer an index needs: listener
// lookup for OnLoad and the search backend bound to this index.
type Datalayer interface {
	Listener(identifier string) (*listener.Listener, error)
	FastVectorSearcher(indexIdentifier string) (vectordb.Searcher, error)
}

// VectorIndex pairs an indexing listener with a similarity measure.
// The indexing listener's outputs populate the index; the compatible
// listener, when set, embeds query documents of a different shape into
// the same space.
type VectorIndex struct {
	// Identifier names the index; the search backend is keyed by it.
	Identifier string

	// IndexingListener produces the indexed vectors.
	IndexingListener ListenerRef

	// CompatibleListener optionally produces query vectors.
	CompatibleListener ListenerRef

	// Measure ranks search results.
	Measure vectordb.Measure

	// MetricValues accumulates evaluation results keyed by metric name.
	MetricValues map[string]float64

	// Observer, when set, receives one operation context per search.
	Observer observability.Observer
}

// New builds a cosine index over the given indexing listener.
func New(identifier string, indexing ListenerRef) *VectorIndex {
	return &VectorIndex{
		Identifier:       identifier,
		IndexingListener: indexing,
		Measure:          vectordb.Cosine,
		MetricValues:     make(map[string]float64),
	}
}

// OnLoad resolves string listener references against the datalayer.
func (vi *VectorIndex) OnLoad(ctx context.Context, db Datalayer) error {
	resolve := func(ref ListenerRef) (ListenerRef, error) {
		if ref.IsZero() || ref.listener != nil {
			return ref, nil
		}
		l, err := db.Listener(ref.identifier)
		if err != nil {
			return ref, fmt.Errorf("vectorindex %s: resolving listener %q: %w", vi.Identifier, ref.identifier, err)
		}
		return RefResolved(l), nil
	}

	var err error
	if vi.IndexingListener, err = resolve(vi.IndexingListener); err != nil {
		return err
	}
	if vi.CompatibleListener, err = resolve(vi.CompatibleListener); err != nil {
		return err
	}
	return nil
}

// listeners returns the resolved indexing listener and, when present,
// the compatible listener.
func (vi *VectorIndex) listeners() ([]*listener.Listener, error) {
	indexing, err := vi.IndexingListener.Resolved()
	if err != nil {
		return nil, err
	}
	out := []*listener.Listener{indexing}
	if !vi.CompatibleListener.IsZero() {
		compatible, err := vi.CompatibleListener.Resolved()
		if err != nil {
			return nil, err
		}
		out = append(out, compatible)
	}
	return out, nil
}

// ModelsKeys returns the parallel (model identifier, key) lists of the
// index's listeners. A length mismatch is reported before any search
// uses the lists.
func (vi *VectorIndex) ModelsKeys() ([]string, []document.Key, error) {
	ls, err := vi.listeners()
	if err != nil {
		return nil, nil, err
	}

	models := make([]string, 0, len(ls))
	keys := make([]document.Key, 0, len(ls))
	for _, l := range ls {
		models = append(models, l.Model.Identifier())
		keys = append(keys, l.Key)
	}
	if len(models) != len(keys) {
		return nil, nil, fmt.Errorf("%w: %d models, %d keys", ErrModelsKeysMismatch, len(models), len(keys))
	}
	return models, keys, nil
}

// Dimensions returns the vector size of the indexing model, taken from
// the last dimension of its codec shape. Models without a fixed shape
// cannot back a vector index.
func (vi *VectorIndex) Dimensions() (int, error) {
	indexing, err := vi.IndexingListener.Resolved()
	if err != nil {
		return 0, err
	}
	p, err := indexing.Model.Resolved()
	if err != nil {
		return 0, err
	}
	if p.Datatype == nil {
		return 0, fmt.Errorf("vectorindex %s: model %q declares no datatype shape", vi.Identifier, p.Identifier)
	}
	d, err := p.Datatype.Dimensions()
	if err != nil {
		return 0, fmt.Errorf("vectorindex %s: model %q: %w", vi.Identifier, p.Identifier, err)
	}
	return d, nil
}

// GetVector embeds a query document: outputs are merged under
// "_outputs", the first (model, key) pair whose fields are all present
// wins, a "_base" key matches any document as a fallback, and an
// unmatchable document yields an error naming the keys and models
// tried. Returns the vector, the model used, and the key that matched.
func (vi *VectorIndex) GetVector(ctx context.Context, like document.Document, outputs map[string]any) ([]float32, string, document.Key, error) {
	models, keys, err := vi.ModelsKeys()
	if err != nil {
		return nil, "", document.Key{}, err
	}

	merged := like.Copy()
	if len(outputs) > 0 {
		merged.MergeOutputs(outputs)
	}

	matched := -1
	for i, key := range keys {
		if key.PresentIn(merged) {
			matched = i
			break
		}
	}
	if matched < 0 {
		for i, key := range keys {
			if key.IsBase() {
				matched = i
				break
			}
		}
	}
	if matched < 0 {
		keyStrs := make([]string, len(keys))
		for i, k := range keys {
			keyStrs[i] = k.String()
		}
		return nil, "", document.Key{}, fmt.Errorf(
			"vectorindex %s: document matches none of the index keys [%s] for models [%s]",
			vi.Identifier, strings.Join(keyStrs, ", "), strings.Join(models, ", "),
		)
	}

	key := keys[matched]
	ls, err := vi.listeners()
	if err != nil {
		return nil, "", document.Key{}, err
	}
	p, err := ls[matched].Model.Resolved()
	if err != nil {
		return nil, "", document.Key{}, err
	}

	x, err := key.Extract(merged)
	if err != nil {
		return nil, "", document.Key{}, fmt.Errorf("vectorindex %s: %w", vi.Identifier, err)
	}
	y, err := p.PredictOne(ctx, x)
	if err != nil {
		return nil, "", document.Key{}, fmt.Errorf("vectorindex %s: model %q: %w", vi.Identifier, p.Identifier, err)
	}
	vec, err := ToFloat32(y)
	if err != nil {
		return nil, "", document.Key{}, fmt.Errorf("vectorindex %s: model %q output: %w", vi.Identifier, p.Identifier, err)
	}
	return vec, p.Identifier, key, nil
}

// GetNearest finds the ids nearest to a query document. When the
// document carries an id under idField that the backend has indexed,
// the search anchors on the stored vector; otherwise the document is
// embedded with GetVector. Results are parallel (ids, scores), at most
// n long, restricted to within when non-nil.
func (vi *VectorIndex) GetNearest(ctx context.Context, like document.Document, db Datalayer, idField string, outputs map[string]any, within []string, n int) (ids []string, scores []float32, err error) {
	start := time.Now()
	operation := "find_nearest_from_vector"
	defer func() {
		vi.observe(operation, time.Since(start), int64(len(ids)), err)
	}()

	searcher, err := db.FastVectorSearcher(vi.Identifier)
	if err != nil {
		return nil, nil, fmt.Errorf("vectorindex %s: %w", vi.Identifier, err)
	}

	if idField != "" {
		if raw, ok := like.Get(idField); ok {
			id := fmt.Sprint(raw)
			ids, scores, err = searcher.FindNearestFromID(ctx, id, within, n)
			if err == nil {
				operation = "find_nearest_from_id"
				return ids, scores, nil
			}
			if !errors.Is(err, vectordb.ErrNotFound) {
				return nil, nil, fmt.Errorf("vectorindex %s: %w", vi.Identifier, err)
			}
			// Unindexed id: embed the document instead.
		}
	}

	vec, _, _, err := vi.GetVector(ctx, like, outputs)
	if err != nil {
		return nil, nil, err
	}
	ids, scores, err = searcher.FindNearestFromVector(ctx, vec, within, n)
	if err != nil {
		return nil, nil, fmt.Errorf("vectorindex %s: %w", vi.Identifier, err)
	}
	return ids, scores, nil
}

func (vi *VectorIndex) observe(operation string, d time.Duration, size int64, err error) {
	if vi.Observer == nil {
		return
	}
	vi.Observer.ObserveOperation(observability.OperationContext{
		Component: "vectorindex",
		Operation: operation,
		Resource:  vi.Identifier,
		Duration:  d,
		Error:     err,
		Size:      size,
	})
}

// ToFloat32 normalizes a model output into the vector shape the search
// backends take. Accepted shapes are float32/float64 slices and []any
// of numbers.
func ToFloat32(v any) ([]float32, error) {
	switch t := v.(type) {
	case []float32:
		return t, nil
	case []float64:
		out := make([]float32, len(t))
		for i, f := range t {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			switch n := e.(type) {
			case float32:
				out[i] = n
			case float64:
				out[i] = float32(n)
			case int:
				out[i] = float32(n)
			default:
				return nil, fmt.Errorf("vectorindex: element %d is %T, not a number", i, e)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vectorindex: %T is not a vector", v)
	}
}
