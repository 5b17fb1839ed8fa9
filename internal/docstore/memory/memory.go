// Package memory provides an in-process docstore.Store for tests and dry
// runs. It mirrors the remote backends' semantics, including conditional
// writes, so coordinator behavior can be exercised without a live store.
package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lifecycle-lab/internal/docstore"
)

const defaultPageSize = 100

// Store is an in-memory implementation of docstore.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any // collection -> id -> fields
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]map[string]map[string]any)}
}

// Compile-time interface check.
var _ docstore.Store = (*Store)(nil)

// Put writes or overwrites a document.
func (s *Store) Put(_ context.Context, collection, id string, fields map[string]any) error {
	if collection == "" || id == "" || fields == nil {
		return docstore.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.coll(collection)[id] = copyFields(fields)
	return nil
}

// Create writes a document only if the ID is free.
func (s *Store) Create(_ context.Context, collection, id string, fields map[string]any) error {
	if collection == "" || id == "" || fields == nil {
		return docstore.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	if _, exists := c[id]; exists {
		return docstore.ErrAlreadyExists
	}
	c[id] = copyFields(fields)
	return nil
}

// Get retrieves a document's fields, or ErrNotFound.
func (s *Store) Get(_ context.Context, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, exists := s.data[collection][id]
	if !exists {
		return nil, docstore.ErrNotFound
	}
	return copyFields(fields), nil
}

// Delete removes a document; deleting a missing document is a no-op.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[collection], id)
	return nil
}

// CompareAndPut writes fields only if the guarded field still holds expect.
// An empty expect matches a missing document or a missing/empty field.
func (s *Store) CompareAndPut(_ context.Context, collection, id string, fields map[string]any, field, expect string) error {
	if collection == "" || id == "" || fields == nil || field == "" {
		return docstore.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	current := ""
	if doc, exists := c[id]; exists {
		if v, ok := doc[field].(string); ok {
			current = v
		}
	}
	if current != expect {
		return docstore.ErrConditionFailed
	}
	c[id] = copyFields(fields)
	return nil
}

// Query returns one page of documents ordered by document ID.
func (s *Store) Query(_ context.Context, collection string, q docstore.Query) (*docstore.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	page := &docstore.Page{}
	for _, id := range ids {
		if q.StartAfter != "" && id <= q.StartAfter {
			continue
		}
		fields := s.data[collection][id]
		if q.FilterField != "" {
			v, _ := fields[q.FilterField].(string)
			if v != q.FilterValue {
				continue
			}
		}
		if len(page.Docs) == limit {
			// One more match exists beyond the page, report a cursor.
			page.NextCursor = page.Docs[limit-1].ID
			return page, nil
		}
		page.Docs = append(page.Docs, docstore.Document{ID: id, Fields: copyFields(fields)})
	}
	return page, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// coll returns the named collection map, creating it on first use.
// Callers must hold the write lock.
func (s *Store) coll(name string) map[string]map[string]any {
	c, exists := s.data[name]
	if !exists {
		c = make(map[string]map[string]any)
		s.data[name] = c
	}
	return c
}

// copyFields deep-copies a field map so stored documents cannot be mutated
// through retained references.
func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyFields(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
