package datalayer

import (
	"fmt"

	"github.com/outfield-ai/outfield/document"
	"github.com/outfield-ai/outfield/memdb"
	"github.com/outfield-ai/outfield/observability"
	"github.com/outfield-ai/outfield/postgres"
	"github.com/outfield-ai/outfield/query"
)

// Backend is the document store the datalayer runs on.
type Backend interface {
	// Insert adds documents to a collection and returns their ids.
	Insert(collection string, docs []document.Document) ([]string, error)

	// NewSelect builds a select over one collection.
	NewSelect(collection string, observer observability.Observer) query.Select
}

// NewBackend builds the configured document backend. The postgres
// backend reads its own connection config from the environment.
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return MemoryBackend(memdb.NewStore()), nil
	case BackendPostgres:
		store, err := postgres.NewStore(postgres.NewConfig())
		if err != nil {
			return nil, err
		}
		return PostgresBackend(store), nil
	default:
		return nil, fmt.Errorf("datalayer: unknown backend %q", cfg.Backend)
	}
}

// MemoryBackend adapts the in-memory store to the Backend contract.
func MemoryBackend(store *memdb.Store) Backend {
	return memoryBackend{store: store}
}

type memoryBackend struct {
	store *memdb.Store
}

func (b memoryBackend) Insert(collection string, docs []document.Document) ([]string, error) {
	return b.store.Insert(collection, docs)
}

func (b memoryBackend) NewSelect(collection string, observer observability.Observer) query.Select {
	s := memdb.NewSelect(b.store, collection)
	if observer != nil {
		s = s.WithObserver(observer)
	}
	return s
}

// PostgresBackend adapts the postgres store to the Backend contract.
func PostgresBackend(store *postgres.Store) Backend {
	return postgresBackend{store: store}
}

type postgresBackend struct {
	store *postgres.Store
}

func (b postgresBackend) Insert(collection string, docs []document.Document) ([]string, error) {
	return b.store.Insert(collection, docs)
}

func (b postgresBackend) NewSelect(collection string, observer observability.Observer) query.Select {
	s := postgres.NewSelect(b.store, collection)
	if observer != nil {
		s = s.WithObserver(observer)
	}
	return s
}
