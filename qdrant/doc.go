// Package qdrant backs vector indexes with a Qdrant server.
//
// Each vector index gets its own Qdrant collection, named after the
// index identifier. Row ids are arbitrary strings, so points are keyed
// by a UUID derived from the row id and the original id travels in the
// point payload.
package qdrant
