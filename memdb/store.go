// Package memdb is the in-memory databackend: document collections
// with per-row atomic output writes, implementing the query contracts
// the orchestration layer is written against. It backs unit tests and
// single-process deployments; the postgres package is the durable
// counterpart.
package memdb

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/outfield-ai/outfield/document"
)

// IDField is the document field holding the row id.
const IDField = "_id"

// Store holds named collections of documents.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	mu    sync.RWMutex
	docs  map[string]document.Document
	order []string
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) collectionNamed(name string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]document.Document)}
		s.collections[name] = c
	}
	return c
}

// Insert adds documents to a collection and returns their ids.
// Documents without an "_id" field get a generated one.
func (s *Store) Insert(name string, docs []document.Document) ([]string, error) {
	c := s.collectionNamed(name)

	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(docs))
	for i, d := range docs {
		id := uuid.NewString()
		if raw, ok := d.Get(IDField); ok {
			id = fmt.Sprint(raw)
		}
		stored := d.Copy()
		stored[IDField] = id
		if _, exists := c.docs[id]; !exists {
			c.order = append(c.order, id)
		}
		c.docs[id] = stored
		ids[i] = id
	}
	return ids, nil
}

// Get returns one document by id.
func (s *Store) Get(name, id string) (document.Document, bool) {
	c := s.collectionNamed(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return d.Copy(), true
}

// all returns the collection's documents in insertion order.
func (s *Store) all(name string) []document.Document {
	c := s.collectionNamed(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]document.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].Copy())
	}
	return out
}

// setPath writes a value at a dotted path of one row, atomically with
// respect to other writers of the same collection.
func (s *Store) setPath(name, id, path string, value any) error {
	c := s.collectionNamed(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("memdb: no row %q in collection %q", id, name)
	}
	d.Set(path, value)
	return nil
}

// deletePath removes a dotted path from every row of a collection.
func (s *Store) deletePath(name, path string) {
	c := s.collectionNamed(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		deleteAt(d, path)
	}
}

func deleteAt(d document.Document, path string) {
	parts := splitPath(path)
	cur := map[string]any(d)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}
