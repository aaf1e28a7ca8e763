package model

import (
	"context"
	"fmt"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/query"
)

// ListenerRegistrar sets up continuous computation for a model over a
// select. The datalayer implements this; depending on the narrow
// interface here keeps the model package free of listener internals.
type ListenerRegistrar interface {
	RegisterListener(ctx context.Context, model string, key document.Key, sel query.Select) error
}

// PredictWithSelectAndIDs computes outputs for the given rows and
// writes them back under "_outputs.<idKey>.<model>.<version>". Inputs
// are extracted from each row with key; outputs are encoded through
// the predictor's datatype or schema before the store update.
func (p *Predictor) PredictWithSelectAndIDs(ctx context.Context, key document.Key, sel query.Select, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := sel.SelectUsingIDs(ids).Execute(ctx)
	if err != nil {
		return fmt.Errorf("model %q: fetching inputs: %w", p.Identifier, err)
	}

	xs := make([]any, len(rows))
	rowIDs := make([]string, len(rows))
	for i, row := range rows {
		x, err := key.Extract(row.Doc)
		if err != nil {
			return fmt.Errorf("model %q: row %s: %w", p.Identifier, row.ID, err)
		}
		xs[i] = x
		rowIDs[i] = row.ID
	}

	outputs, err := p.Predict(ctx, xs)
	if err != nil {
		return fmt.Errorf("model %q: predict: %w", p.Identifier, err)
	}

	encoded := make([]any, len(outputs))
	for i, out := range outputs {
		enc, err := p.EncodeOutput(out)
		if err != nil {
			return fmt.Errorf("model %q: encoding output for row %s: %w", p.Identifier, rowIDs[i], err)
		}
		encoded[i] = enc
	}

	idKey := key.IDKey()
	if err := sel.ModelUpdate(ctx, rowIDs, idKey, p.Identifier, p.Version, encoded); err != nil {
		return fmt.Errorf("model %q: writing outputs: %w", p.Identifier, err)
	}
	return nil
}

// PredictWithSelect computes outputs for every row the select matches.
// With overwrite false, rows that already carry this model's output
// field are skipped.
func (p *Predictor) PredictWithSelect(ctx context.Context, key document.Key, sel query.Select, overwrite bool) error {
	scope := sel
	if !overwrite {
		field := document.OutputField(key.IDKey(), p.Identifier, p.Version)
		scope = sel.SelectIDsOfMissingOutputs(field)
	}

	rows, err := scope.Execute(ctx)
	if err != nil {
		return fmt.Errorf("model %q: selecting rows: %w", p.Identifier, err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return p.PredictWithSelectAndIDs(ctx, key, sel, ids)
}

// PredictAndListen computes outputs for the current contents of the
// select and registers a listener so future inserts are processed too.
func (p *Predictor) PredictAndListen(ctx context.Context, key document.Key, sel query.Select, registrar ListenerRegistrar) error {
	if err := p.PredictWithSelect(ctx, key, sel, false); err != nil {
		return err
	}
	return registrar.RegisterListener(ctx, p.Identifier, key, sel)
}
