// Package listener binds a model to a select: which field(s) of which
// rows feed the model, and how computed outputs are scheduled when the
// underlying data changes.
package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/jobs"
	"github.com/outfield-ai/outfield/model"
	"github.com/outfield-ai/outfield/query"
)

// ErrUnresolvedModel is returned when a listener is used before its
// string model reference has been resolved to a predictor.
var ErrUnresolvedModel = errors.New("listener: model reference not resolved")

// ModelRef is either an unresolved identifier or a resolved predictor.
// References created by identifier must pass through PreCreate before
// the listener can predict.
type ModelRef struct {
	identifier string
	predictor  *model.Predictor
}

// RefByIdentifier builds a reference that is resolved later against
// the datalayer's registered models.
func RefByIdentifier(identifier string) ModelRef {
	return ModelRef{identifier: identifier}
}

// RefResolved wraps an already-constructed predictor.
func RefResolved(p *model.Predictor) ModelRef {
	return ModelRef{identifier: p.Identifier, predictor: p}
}

// Identifier returns the referenced model's identifier, resolved or
// not.
func (r ModelRef) Identifier() string { return r.identifier }

// IsResolved reports whether the reference carries a predictor.
func (r ModelRef) IsResolved() bool { return r.predictor != nil }

// Resolved returns the predictor, or ErrUnresolvedModel when the
// reference is still a bare identifier.
func (r ModelRef) Resolved() (*model.Predictor, error) {
	if r.predictor == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedModel, r.identifier)
	}
	return r.predictor, nil
}

// PredictOpts carries the options a listener applies to every predict
// run it schedules.
type PredictOpts struct {
	// Overwrite recomputes outputs that already exist instead of
	// restricting to missing ones.
	Overwrite bool
}

// Datalayer is the slice of the datalayer a listener needs during
// PreCreate: model lookup and select-variable resolution.
type Datalayer interface {
	Model(identifier string) (*model.Predictor, error)
	query.VariableResolver
}

// Registry receives the listener after creation so data changes reach
// it; the cdc package implements this.
type Registry interface {
	Register(ctx context.Context, l *Listener) error
}

// Listener watches the rows of a select and keeps one model's outputs
// current for them.
type Listener struct {
	// Model is the predictor computing the outputs.
	Model ModelRef

	// Key selects the model input from each row.
	Key document.Key

	// Select scopes the rows this listener watches.
	Select query.Select

	// Active gates job scheduling; an inactive listener schedules
	// nothing but keeps its registration.
	Active bool

	// Opts apply to every scheduled predict run.
	Opts PredictOpts
}

// New builds an active listener.
func New(ref ModelRef, key document.Key, sel query.Select) *Listener {
	return &Listener{Model: ref, Key: key, Select: sel, Active: true}
}

// Identifier names the listener: "<model>/<id_key>". Two listeners on
// the same model and key are the same listener.
func (l *Listener) Identifier() string {
	return l.Model.Identifier() + "/" + l.Key.IDKey()
}

// Collection names the collection this listener watches.
func (l *Listener) Collection() string {
	if l.Select == nil {
		return ""
	}
	return l.Select.Collection()
}

// OutputField returns the storage path this listener writes to.
// Requires a resolved model for its version.
func (l *Listener) OutputField() (string, error) {
	p, err := l.Model.Resolved()
	if err != nil {
		return "", err
	}
	return document.OutputField(l.Key.IDKey(), p.Identifier, p.Version), nil
}

// Dependencies lists the identifiers of upstream listeners this one
// consumes: one "<model>/<key>" entry per "_outputs." key component,
// plus the output fields the select itself declares.
func (l *Listener) Dependencies() []string {
	var deps []string
	for _, c := range l.Key.Components() {
		if key, m, ok := document.ParseOutputRef(c); ok {
			deps = append(deps, m+"/"+key)
		}
	}
	if l.Select != nil {
		for key, m := range l.Select.OutputFields() {
			deps = append(deps, m+"/"+key)
		}
	}
	return deps
}

// ScheduleJobs returns the jobs backfilling this listener's outputs:
// nil when inactive, otherwise exactly one predict job gated on the
// given upstream jobs.
func (l *Listener) ScheduleJobs(deps ...*jobs.Job) ([]*jobs.Job, error) {
	if !l.Active {
		return nil, nil
	}
	p, err := l.Model.Resolved()
	if err != nil {
		return nil, err
	}
	j := p.CreatePredictJob(l.Key.IDKey(), l.Opts.Overwrite, nil, deps...)
	return []*jobs.Job{j}, nil
}

// CreatePredictJobForIDs returns a predict job scoped to the given
// changed rows, or nil when the listener is inactive. The cdc registry
// calls this on every intake event.
func (l *Listener) CreatePredictJobForIDs(ids []string) (*jobs.Job, error) {
	if !l.Active {
		return nil, nil
	}
	p, err := l.Model.Resolved()
	if err != nil {
		return nil, err
	}
	return p.CreatePredictJob(l.Key.IDKey(), true, ids), nil
}

// Predict runs the listener's model over the given rows and writes the
// outputs back through the select.
func (l *Listener) Predict(ctx context.Context, ids []string) error {
	p, err := l.Model.Resolved()
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return p.PredictWithSelectAndIDs(ctx, l.Key, l.Select, ids)
	}
	return p.PredictWithSelect(ctx, l.Key, l.Select, l.Opts.Overwrite)
}

// PreCreate resolves the model reference and binds the select's
// late-bound variables. It must run before the listener predicts or
// registers.
func (l *Listener) PreCreate(ctx context.Context, db Datalayer) error {
	if !l.Model.IsResolved() {
		p, err := db.Model(l.Model.Identifier())
		if err != nil {
			return fmt.Errorf("listener %s: resolving model: %w", l.Identifier(), err)
		}
		l.Model = RefResolved(p)
	}
	if l.Select != nil && len(l.Select.Variables()) > 0 {
		bound, err := l.Select.SetVariables(db)
		if err != nil {
			return fmt.Errorf("listener %s: binding select variables: %w", l.Identifier(), err)
		}
		l.Select = bound
	}
	return nil
}

// PostCreate registers the listener for change events.
func (l *Listener) PostCreate(ctx context.Context, reg Registry) error {
	return reg.Register(ctx, l)
}

// Cleanup removes store-side state the listener's model created, when
// the select supports it. Selects without the capability need no
// cleanup. Best-effort: it does not undo already-written outputs.
func (l *Listener) Cleanup(ctx context.Context) error {
	c, ok := l.Select.(query.SupportsModelCleanup)
	if !ok {
		return nil
	}
	return c.ModelCleanup(ctx, l.Model.Identifier(), l.Key)
}
