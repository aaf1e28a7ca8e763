package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/query"
)

// Select is the postgres query.Select. The zero filters select the
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
// select carry and which model owns each.
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

// jsonbPath renders a dotted field as a postgres jsonb path literal,
// e.g. "_outputs.x.add2.0" becomes "{_outputs,x,add2,0}".
func jsonbPath(field string) string {
	return "{" + strings.ReplaceAll(field, ".", ",") + "}"
}

// Execute returns the matching rows in insertion order, or in id order
// when the select was narrowed with SelectUsingIDs.
func (s *Select) Execute(ctx context.Context) (rows []query.Row, err error) {
	start := time.Now()
	defer func() {
		s.observe("execute", "", time.Since(start), int64(len(rows)), err)
	}()

	if vars := s.Variables(); len(vars) > 0 {
		return nil, fmt.Errorf("postgres: select has unresolved variables %v", vars)
	}

	tx := s.store.db.WithContext(ctx).Where("collection = ?", s.collection)
	if s.ids != nil {
		tx = tx.Where("row_id IN ?", s.ids)
	}
	if s.missingField != "" {
		tx = tx.Where("doc #> ? IS NULL", jsonbPath(s.missingField))
	}

	var stored []Row
	if err = tx.Order("id asc").Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("postgres: executing select on %q: %w", s.collection, err)
	}

	if s.ids != nil {
		// Preserve the requested id order.
		byID := make(map[string]Row, len(stored))
		for _, r := range stored {
			byID[r.RowID] = r
		}
		rows = make([]query.Row, 0, len(s.ids))
		for _, id := range s.ids {
			r, ok := byID[id]
			if !ok {
				continue
			}
			rows = append(rows, query.Row{ID: id, Doc: document.Document(r.Doc)})
		}
		return rows, nil
	}

	rows = make([]query.Row, len(stored))
	for i, r := range stored {
		rows[i] = query.Row{ID: r.RowID, Doc: document.Document(r.Doc)}
	}
	return rows, nil
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
// "_outputs.<idKey>.<model>.<version>". Each row is updated in its own
// transaction under a row lock, so writes stay atomic per row.
func (s *Select) ModelUpdate(ctx context.Context, ids []string, idKey, model string, version int, outputs []any) (err error) {
	start := time.Now()
	field := document.OutputField(idKey, model, version)
	defer func() {
		s.observe("model_update", field, time.Since(start), int64(len(ids)), err)
	}()

	if len(ids) != len(outputs) {
		return fmt.Errorf("postgres: %d ids but %d outputs", len(ids), len(outputs))
	}
	for i, id := range ids {
		if err = s.updateRow(ctx, id, field, outputs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Select) updateRow(ctx context.Context, id, field string, value any) error {
	return s.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Row
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where("collection = ? AND row_id = ?", s.collection, id).
			First(&r).Error
		if err != nil {
			return fmt.Errorf("postgres: no row %q in collection %q: %w", id, s.collection, err)
		}

		doc := document.Document(r.Doc)
		doc.Set(field, value)
		return tx.Model(&Row{}).
			Where("collection = ? AND row_id = ?", s.collection, id).
			Update("doc", JSONB(doc)).Error
	})
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
		return nil, fmt.Errorf("postgres: unresolved select variable %q", name)
	}
	clone := *s
	clone.collection = value
	return &clone, nil
}

// ModelCleanup strips the model's outputs under the given key from
// every row of the collection.
func (s *Select) ModelCleanup(ctx context.Context, model string, key document.Key) error {
	path := jsonbPath(document.OutputsKey + "." + key.IDKey() + "." + model)
	return s.store.db.WithContext(ctx).Model(&Row{}).
		Where("collection = ?", s.collection).
		Update("doc", gorm.Expr("doc #- ?", path)).Error
}

// DownloadUpdate writes fetched URI content into a row field. Bytes
// are stored base64-encoded, following JSON serialization of []byte.
func (s *Select) DownloadUpdate(ctx context.Context, id, field string, data []byte) error {
	return s.updateRow(ctx, id, field, data)
}

func (s *Select) observe(operation, subResource string, d time.Duration, size int64, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "postgres",
		Operation:   operation,
		Resource:    s.collection,
		SubResource: subResource,
		Duration:    d,
		Error:       err,
		Size:        size,
	})
}
