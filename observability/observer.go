// Package observability defines the operation-observer hooks used by
// outfield's backend clients (storage, vector search, CDC transport).
//
// Backends call Observer.ObserveOperation after every operation they
// perform; an application wires a concrete observer that forwards the
// context to metrics or tracing. A nil observer is always allowed and
// means "no observation".
package observability

import "time"

// OperationContext describes a single completed backend operation.
type OperationContext struct {
	// Component is the backend that performed the operation,
	// e.g. "memdb", "postgres", "qdrant", "cdc".
	Component string

	// Operation is the operation name, e.g. "execute", "model_update",
	// "find_nearest_from_vector".
	Operation string

	// Resource is the primary resource operated on (collection name,
	// vector index identifier, queue name).
	Resource string

	// SubResource carries additional context such as an output field
	// or a listener identifier.
	SubResource string

	// Duration is how long the operation took.
	Duration time.Duration

	// Error is the operation error, nil on success.
	Error error

	// Size is an operation-specific size (rows fetched, vectors
	// inserted, bytes written); -1 when not applicable.
	Size int64

	// Metadata carries operation-specific key/value details.
	Metadata map[string]interface{}
}

// Observer receives operation notifications from backend clients.
//
// Implementations must be safe for concurrent use; backends may call
// ObserveOperation from multiple goroutines.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}
