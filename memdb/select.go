package memdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/query"
)

// Select is the in-memory query.Select. The zero filters select the
// whole collection in insertion order; the derivation methods narrow a
// copy, leaving the receiver untouched.
type Select struct {
	store      *Store
	collection string

	ids          []string
	missingField string

	outputFields map[string]string
	observer     observability.Observer
}

var (
	_ query.Select                 = (*Select)(nil)
	_ query.SupportsModelCleanup   = (*Select)(nil)
	_ query.SupportsDownloadUpdate = (*Select)(nil)
)

// NewSelect selects a whole collection. A collection name starting
// with "$" is a late-bound variable resolved by SetVariables.
func NewSelect(store *Store, collection string) *Select {
	return &Select{store: store, collection: collection}
}

// WithOutputFields declares which output-field keys rows of this
// select carry and which model owns each; listeners derive their
// dependencies from it.
func (s *Select) WithOutputFields(fields map[string]string) *Select {
	clone := *s
	clone.outputFields = fields
	return &clone
}

// WithObserver attaches an observer notified of executes and updates.
func (s *Select) WithObserver(observer observability.Observer) *Select {
	clone := *s
	clone.observer = observer
	return &clone
}

// Collection names the selected collection.
func (s *Select) Collection() string { return s.collection }

// Execute returns the matching rows in insertion order, or in id order
// when the select was narrowed with SelectUsingIDs.
func (s *Select) Execute(ctx context.Context) (rows []query.Row, err error) {
	start := time.Now()
	defer func() {
		s.observe("execute", "", time.Since(start), int64(len(rows)), err)
	}()

	if vars := s.Variables(); len(vars) > 0 {
		return nil, fmt.Errorf("memdb: select has unresolved variables %v", vars)
	}

	if s.ids != nil {
		rows = make([]query.Row, 0, len(s.ids))
		for _, id := range s.ids {
			d, ok := s.store.Get(s.collection, id)
			if !ok {
				return nil, fmt.Errorf("memdb: no row %q in collection %q", id, s.collection)
			}
			if s.matches(d) {
				rows = append(rows, query.Row{ID: id, Doc: d})
			}
		}
		return rows, nil
	}

	for _, d := range s.store.all(s.collection) {
		if !s.matches(d) {
			continue
		}
		id, _ := d.Get(IDField)
		rows = append(rows, query.Row{ID: fmt.Sprint(id), Doc: d})
	}
	return rows, nil
}

func (s *Select) matches(d document.Document) bool {
	if s.missingField != "" && d.Has(s.missingField) {
		return false
	}
	return true
}

// SelectUsingIDs narrows the select to the given ids, preserving their
// order.
func (s *Select) SelectUsingIDs(ids []string) query.Select {
	clone := *s
	clone.ids = ids
	return &clone
}

// SelectIDsOfMissingOutputs narrows the select to rows without the
// given output field.
func (s *Select) SelectIDsOfMissingOutputs(outputField string) query.Select {
	clone := *s
	clone.missingField = outputField
	return &clone
}

// ModelUpdate writes outputs[i] for ids[i] under
// "_outputs.<idKey>.<model>.<version>". Each row write is atomic.
func (s *Select) ModelUpdate(ctx context.Context, ids []string, idKey, model string, version int, outputs []any) (err error) {
	start := time.Now()
	defer func() {
		s.observe("model_update", document.OutputField(idKey, model, version), time.Since(start), int64(len(ids)), err)
	}()

	if len(ids) != len(outputs) {
		return fmt.Errorf("memdb: %d ids but %d outputs", len(ids), len(outputs))
	}
	field := document.OutputField(idKey, model, version)
	for i, id := range ids {
		if err = s.store.setPath(s.collection, id, field, outputs[i]); err != nil {
			return err
		}
	}
	return nil
}

// OutputFields maps output-field keys of this select to owning models.
func (s *Select) OutputFields() map[string]string { return s.outputFields }

// Variables lists unresolved "$name" placeholders.
func (s *Select) Variables() []string {
	if strings.HasPrefix(s.collection, "$") {
		return []string{strings.TrimPrefix(s.collection, "$")}
	}
	return nil
}

// SetVariables resolves "$name" placeholders against the resolver.
func (s *Select) SetVariables(resolver query.VariableResolver) (query.Select, error) {
	if !strings.HasPrefix(s.collection, "$") {
		return s, nil
	}
	name := strings.TrimPrefix(s.collection, "$")
	value, ok := resolver.Variable(name)
	if !ok {
		return nil, fmt.Errorf("memdb: unresolved select variable %q", name)
	}
	clone := *s
	clone.collection = value
	return &clone, nil
}

// ModelCleanup removes the model's outputs under the given key from
// every row of the collection.
func (s *Select) ModelCleanup(ctx context.Context, model string, key document.Key) error {
	s.store.deletePath(s.collection, document.OutputsKey+"."+key.IDKey()+"."+model)
	return nil
}

// DownloadUpdate writes fetched URI content into a row field.
func (s *Select) DownloadUpdate(ctx context.Context, id, field string, data []byte) error {
	return s.store.setPath(s.collection, id, field, data)
}

func (s *Select) observe(operation, subResource string, d time.Duration, size int64, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "memdb",
		Operation:   operation,
		Resource:    s.collection,
		SubResource: subResource,
		Duration:    d,
		Error:       err,
		Size:        size,
	})
}
