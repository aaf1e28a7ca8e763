// Package postgres is the durable databackend: collections of JSONB
// documents in a single table, implementing the query contracts the
// orchestration layer is written against. The missing-outputs filter
// and the per-row output writes are pushed down to SQL so they stay
// atomic under concurrent writers.
package postgres
