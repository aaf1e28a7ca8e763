// Package query defines the contracts between the orchestration layer
// and the underlying document store: the Select query abstraction that
// listeners are bound to, and the optional capabilities a store's
// selects may implement.
//
// Implementations live with their backends (memdb, postgres); the
// orchestration packages depend only on these interfaces.
package query

import (
	"context"

	"github.com/outfield-ai/outfield/document"
)

// Row is a single result of executing a Select.
type Row struct {
	// ID is the row's identifier in the underlying store.
	ID string

	// Doc is the row content, including any "_outputs" fields.
	Doc document.Document
}

// Select describes which data of a collection is processed and how
// computed outputs are written back. Selects are immutable; the
// derivation methods return new Select values.
type Select interface {
	// Collection names the table or collection this select reads.
	Collection() string

	// Execute runs the query and returns the matching rows.
	Execute(ctx context.Context) ([]Row, error)

	// SelectUsingIDs narrows the select to the given row ids. The
	// execution order of the returned select follows the id order.
	SelectUsingIDs(ids []string) Select

	// SelectIDsOfMissingOutputs narrows the select to rows that do
	// not yet carry the given output field.
	SelectIDsOfMissingOutputs(outputField string) Select

	// ModelUpdate writes computed outputs back into the store under
	// "_outputs.<idKey>.<model>.<version>", one output per id, in
	// order. Each row update is atomic.
	ModelUpdate(ctx context.Context, ids []string, idKey, model string, version int, outputs []any) error

	// OutputFields maps output-field keys produced by this select to
	// the model identifier owning them. Used for dependency ordering.
	OutputFields() map[string]string

	// Variables lists the names of late-bound query parameters that
	// must be resolved before execution.
	Variables() []string

	// SetVariables resolves late-bound parameters against the given
	// resolver and returns the bound select. It fails when a declared
	// variable cannot be resolved.
	SetVariables(resolver VariableResolver) (Select, error)
}

// VariableResolver resolves late-bound query parameters by name.
// The datalayer implements this over its configuration.
type VariableResolver interface {
	Variable(name string) (string, bool)
}

// SupportsModelCleanup is an optional capability of a Select: removing
// whatever store-side state the given model/key pair created. Selects
// that do not implement it require no cleanup; callers treat absence
// as a defined no-op. Cleanup is best-effort and is not assumed to
// fully reverse a listener's side effects.
type SupportsModelCleanup interface {
	ModelCleanup(ctx context.Context, model string, key document.Key) error
}

// SupportsDownloadUpdate is an optional capability of a Select:
// writing fetched URI content back into a row field. Used by the
// artifact downloader.
type SupportsDownloadUpdate interface {
	DownloadUpdate(ctx context.Context, id, field string, data []byte) error
}
