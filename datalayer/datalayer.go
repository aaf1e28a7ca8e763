package datalayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/outfield-ai/outfield/cdc"
	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/jobs"
	"github.com/outfield-ai/outfield/listener"
	"github.com/outfield-ai/outfield/logger"
	"github.com/outfield-ai/outfield/model"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/query"
	"github.com/outfield-ai/outfield/vectordb"
	"github.com/outfield-ai/outfield/vectorindex"
)

// Component type ids used by Load and job routing.
const (
	TypeModel       = "model"
	TypeListener    = "listener"
	TypeVectorIndex = "vector_index"
)

// SearcherFactory builds the search backend for one vector index. The
// default builds the in-memory exact searcher; the qdrant package
// provides a factory for a remote backend.
type SearcherFactory func(ctx context.Context, identifier string, measure vectordb.Measure, dimensions int) (vectordb.Searcher, error)

// Datalayer wires models, listeners and vector indexes to a document
// store, a job runner and the CDC registry.
type Datalayer struct {
	cfg       Config
	log       *logger.Logger
	store     Backend
	runner    *jobs.Runner
	registry  *cdc.Registry
	transport cdc.Transport
	observer  observability.Observer

	newSearcher SearcherFactory

	mu        sync.RWMutex
	models    map[string]*model.Predictor
	listeners map[string]*listener.Listener
	indexes   map[string]*vectorindex.VectorIndex
	searchers map[string]vectordb.Searcher
	variables map[string]string
}

// Compile-time checks that Datalayer satisfies the narrow interfaces
// the orchestration packages consume.
var (
	_ listener.Datalayer      = (*Datalayer)(nil)
	_ vectorindex.Datalayer   = (*Datalayer)(nil)
	_ model.ListenerRegistrar = (*Datalayer)(nil)
	_ jobs.Performer          = (*Datalayer)(nil)
	_ cdc.Submitter           = (*jobs.Runner)(nil)
)

// New builds a datalayer over the configured document backend.
func New(cfg Config, log *logger.Logger) (*Datalayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}

	d := &Datalayer{
		cfg:       cfg,
		log:       log,
		store:     store,
		models:    make(map[string]*model.Predictor),
		listeners: make(map[string]*listener.Listener),
		indexes:   make(map[string]*vectorindex.VectorIndex),
		searchers: make(map[string]vectordb.Searcher),
		variables: make(map[string]string),
	}
	d.newSearcher = func(ctx context.Context, identifier string, measure vectordb.Measure, dimensions int) (vectordb.Searcher, error) {
		return vectordb.NewMemorySearcher(measure, dimensions), nil
	}
	d.runner = jobs.NewRunner(d, cfg.NumWorkers)
	if log != nil {
		d.runner.WithLogger(log)
	}
	d.registry = cdc.NewRegistry(d.runner)
	return d, nil
}

// WithTransport attaches a remote CDC transport; change events are
// published to it in addition to local dispatch.
func (d *Datalayer) WithTransport(t cdc.Transport) *Datalayer {
	d.transport = t
	return d
}

// WithObserver attaches an observer forwarded to the store selects,
// the registry and the vector indexes.
func (d *Datalayer) WithObserver(observer observability.Observer) *Datalayer {
	d.observer = observer
	d.registry.WithObserver(observer)
	return d
}

// WithSearcherFactory overrides how vector-index search backends are
// built.
func (d *Datalayer) WithSearcherFactory(f SearcherFactory) *Datalayer {
	d.newSearcher = f
	return d
}

// Select builds a select over one collection of the store.
func (d *Datalayer) Select(collection string) query.Select {
	return d.store.NewSelect(collection, d.observer)
}

// SetVariable defines a late-bound select variable.
func (d *Datalayer) SetVariable(name, value string) {
	d.mu.Lock()
	d.variables[name] = value
	d.mu.Unlock()
}

// Variable resolves a late-bound select variable.
func (d *Datalayer) Variable(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.variables[name]
	return v, ok
}

// Add registers a component and runs its creation lifecycle: models
// are validated, listeners resolve their references, backfill and join
// the CDC registry, vector indexes resolve listeners, get a search
// backend and index existing outputs.
func (d *Datalayer) Add(ctx context.Context, component any) error {
	switch c := component.(type) {
	case *model.Predictor:
		return d.addModel(c)
	case *listener.Listener:
		return d.addListener(ctx, c)
	case *vectorindex.VectorIndex:
		return d.addVectorIndex(ctx, c)
	default:
		return fmt.Errorf("datalayer: cannot add component of type %T", component)
	}
}

func (d *Datalayer) addModel(p *model.Predictor) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.models[p.Identifier] = p
	d.mu.Unlock()
	d.logInfo("registered model", map[string]interface{}{"model": p.Identifier})
	return nil
}

func (d *Datalayer) addListener(ctx context.Context, l *listener.Listener) error {
	if err := l.PreCreate(ctx, d); err != nil {
		return err
	}

	d.mu.Lock()
	d.listeners[l.Identifier()] = l
	d.mu.Unlock()

	js, err := l.ScheduleJobs()
	if err != nil {
		return err
	}
	if len(js) > 0 {
		if err := d.runner.Submit(ctx, js...); err != nil {
			return err
		}
	}

	if !d.cfg.ServerMode {
		if err := d.registry.Register(ctx, l); err != nil {
			return err
		}
	}
	if d.transport != nil {
		ev := cdc.Event{Kind: cdc.EventListenerAdd, Listener: l.Identifier()}
		if err := d.transport.Publish(ctx, ev); err != nil {
			return fmt.Errorf("datalayer: announcing listener %s: %w", l.Identifier(), err)
		}
	}
	d.logInfo("registered listener", map[string]interface{}{"listener": l.Identifier()})
	return nil
}

func (d *Datalayer) addVectorIndex(ctx context.Context, vi *vectorindex.VectorIndex) error {
	if err := vi.OnLoad(ctx, d); err != nil {
		return err
	}
	if vi.Observer == nil {
		vi.Observer = d.observer
	}

	dims, err := vi.Dimensions()
	if err != nil {
		return err
	}
	searcher, err := d.newSearcher(ctx, vi.Identifier, vi.Measure, dims)
	if err != nil {
		return fmt.Errorf("datalayer: building searcher for index %s: %w", vi.Identifier, err)
	}

	d.mu.Lock()
	d.indexes[vi.Identifier] = vi
	d.searchers[vi.Identifier] = searcher
	d.mu.Unlock()

	if err := d.backfillIndex(ctx, vi, searcher); err != nil {
		return err
	}
	d.logInfo("registered vector index", map[string]interface{}{"vector_index": vi.Identifier})
	return nil
}

// Remove drops a registered component and runs its teardown
// lifecycle. Removing a listener first unregisters its change-trigger
// subscription so no further predict jobs are scheduled, then strips
// its stored outputs where the select supports cleanup. Removing a
// vector index drops its search backend.
func (d *Datalayer) Remove(ctx context.Context, typeID, identifier string) error {
	switch typeID {
	case TypeModel:
		d.mu.Lock()
		_, ok := d.models[identifier]
		delete(d.models, identifier)
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("datalayer: no model named %q", identifier)
		}
	case TypeListener:
		l, err := d.Listener(identifier)
		if err != nil {
			return err
		}
		d.registry.Unregister(l.Identifier())
		if err := l.Cleanup(ctx); err != nil {
			return err
		}
		d.mu.Lock()
		delete(d.listeners, identifier)
		d.mu.Unlock()
		if d.transport != nil {
			ev := cdc.Event{Kind: cdc.EventListenerRemove, Listener: identifier}
			if err := d.transport.Publish(ctx, ev); err != nil {
				return fmt.Errorf("datalayer: announcing listener removal %s: %w", identifier, err)
			}
		}
	case TypeVectorIndex:
		d.mu.Lock()
		_, ok := d.indexes[identifier]
		delete(d.indexes, identifier)
		delete(d.searchers, identifier)
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("datalayer: no vector index named %q", identifier)
		}
	default:
		return fmt.Errorf("datalayer: unknown component type %q", typeID)
	}
	d.logInfo("removed "+typeID, map[string]interface{}{"identifier": identifier})
	return nil
}

// backfillIndex loads already-computed outputs of the indexing
// listener into a fresh search backend.
func (d *Datalayer) backfillIndex(ctx context.Context, vi *vectorindex.VectorIndex, searcher vectordb.Searcher) error {
	indexing, err := vi.IndexingListener.Resolved()
	if err != nil {
		return err
	}
	field, err := indexing.OutputField()
	if err != nil {
		return err
	}

	rows, err := indexing.Select.Execute(ctx)
	if err != nil {
		return fmt.Errorf("datalayer: backfilling index %s: %w", vi.Identifier, err)
	}

	var items []vectordb.Item
	for _, row := range rows {
		raw, ok := row.Doc.Get(field)
		if !ok {
			continue
		}
		vec, err := vectorindex.ToFloat32(raw)
		if err != nil {
			return fmt.Errorf("datalayer: index %s row %s: %w", vi.Identifier, row.ID, err)
		}
		items = append(items, vectordb.Item{ID: row.ID, Vector: vec})
	}
	if len(items) == 0 {
		return nil
	}
	return searcher.Add(ctx, items)
}

// syncIndexes pushes freshly computed outputs of one listener into
// every vector index built on it.
func (d *Datalayer) syncIndexes(ctx context.Context, l *listener.Listener, ids []string) error {
	d.mu.RLock()
	var matching []*vectorindex.VectorIndex
	for _, vi := range d.indexes {
		if vi.IndexingListener.Identifier() == l.Identifier() {
			matching = append(matching, vi)
		}
	}
	d.mu.RUnlock()

	for _, vi := range matching {
		searcher, err := d.FastVectorSearcher(vi.Identifier)
		if err != nil {
			return err
		}
		field, err := l.OutputField()
		if err != nil {
			return err
		}

		scope := l.Select
		if len(ids) > 0 {
			scope = scope.SelectUsingIDs(ids)
		}
		rows, err := scope.Execute(ctx)
		if err != nil {
			return fmt.Errorf("datalayer: syncing index %s: %w", vi.Identifier, err)
		}

		var items []vectordb.Item
		for _, row := range rows {
			raw, ok := row.Doc.Get(field)
			if !ok {
				continue
			}
			vec, err := vectorindex.ToFloat32(raw)
			if err != nil {
				return fmt.Errorf("datalayer: index %s row %s: %w", vi.Identifier, row.ID, err)
			}
			items = append(items, vectordb.Item{ID: row.ID, Vector: vec})
		}
		if len(items) == 0 {
			continue
		}
		if err := searcher.Add(ctx, items); err != nil {
			return err
		}
	}
	return nil
}

// Load looks up a registered component by type and identifier.
func (d *Datalayer) Load(typeID, identifier string) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch typeID {
	case TypeModel:
		if p, ok := d.models[identifier]; ok {
			return p, nil
		}
	case TypeListener:
		if l, ok := d.listeners[identifier]; ok {
			return l, nil
		}
	case TypeVectorIndex:
		if vi, ok := d.indexes[identifier]; ok {
			return vi, nil
		}
	default:
		return nil, fmt.Errorf("datalayer: unknown component type %q", typeID)
	}
	return nil, fmt.Errorf("datalayer: no %s named %q", typeID, identifier)
}

// Model looks up a registered predictor.
func (d *Datalayer) Model(identifier string) (*model.Predictor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.models[identifier]
	if !ok {
		return nil, fmt.Errorf("datalayer: no model named %q", identifier)
	}
	return p, nil
}

// Models returns the registered model identifiers.
func (d *Datalayer) Models() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.models))
	for id := range d.models {
		out = append(out, id)
	}
	return out
}

// Listener looks up a registered listener.
func (d *Datalayer) Listener(identifier string) (*listener.Listener, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.listeners[identifier]
	if !ok {
		return nil, fmt.Errorf("datalayer: no listener named %q", identifier)
	}
	return l, nil
}

// VectorIndex looks up a registered vector index.
func (d *Datalayer) VectorIndex(identifier string) (*vectorindex.VectorIndex, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	vi, ok := d.indexes[identifier]
	if !ok {
		return nil, fmt.Errorf("datalayer: no vector index named %q", identifier)
	}
	return vi, nil
}

// FastVectorSearcher returns the search backend bound to a vector
// index.
func (d *Datalayer) FastVectorSearcher(indexIdentifier string) (vectordb.Searcher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.searchers[indexIdentifier]
	if !ok {
		return nil, fmt.Errorf("datalayer: no searcher for vector index %q", indexIdentifier)
	}
	return s, nil
}

// RegisterListener implements model.ListenerRegistrar: it builds a
// listener for the model over the select and runs the full Add
// lifecycle.
func (d *Datalayer) RegisterListener(ctx context.Context, modelID string, key document.Key, sel query.Select) error {
	return d.Add(ctx, listener.New(listener.RefByIdentifier(modelID), key, sel))
}

// Insert writes documents into a collection and routes the change
// through CDC: the local registry schedules predict jobs, and a remote
// transport, when attached, receives the event too.
func (d *Datalayer) Insert(ctx context.Context, collection string, docs []document.Document) ([]string, error) {
	ids, err := d.store.Insert(collection, docs)
	if err != nil {
		return nil, err
	}

	if err := d.registry.OnInsert(ctx, collection, ids); err != nil {
		return ids, err
	}
	if d.transport != nil {
		ev := cdc.Event{Kind: cdc.EventInsert, Collection: collection, IDs: ids}
		if err := d.transport.Publish(ctx, ev); err != nil {
			return ids, fmt.Errorf("datalayer: publishing insert event: %w", err)
		}
	}
	return ids, nil
}

// Registry exposes the CDC registry, for wiring a transport consumer.
func (d *Datalayer) Registry() *cdc.Registry { return d.registry }

// Wait blocks until all scheduled jobs have completed.
func (d *Datalayer) Wait() { d.runner.Wait() }

func (d *Datalayer) logInfo(msg string, fields map[string]interface{}) {
	if d.log == nil {
		return
	}
	d.log.Info(msg, nil, fields)
}
