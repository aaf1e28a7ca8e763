// Package datalayer is the orchestration hub: it registers models,
// listeners and vector indexes, routes data changes through the cdc
// registry, executes predict jobs on the jobs runner, and binds vector
// indexes to their search backends.
//
// The orchestration packages (model, listener, vectorindex) each
// declare the narrow slice of this package they consume; Datalayer
// satisfies all of them.
package datalayer
