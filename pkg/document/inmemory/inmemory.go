// Package inmemory provides a map-backed document store for tests and
// ephemeral deployments.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quarryhq/quarry/pkg/document"
)

// Store implements document.Store in process memory.
type Store struct {
	mu   sync.RWMutex
	docs map[string]document.Document
}

// NewStore creates an empty in-memory document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]document.Document)}
}

// Create inserts a new document record.
func (s *Store) Create(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

// Get returns the document with the given ID.
func (s *Store) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	copy := doc
	return &copy, nil
}

// List returns all documents, newest upload first.
func (s *Store) List(_ context.Context) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*document.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		copy := doc
		docs = append(docs, &copy)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadDate.After(docs[j].UploadDate)
	})

	return docs, nil
}

// Update persists changes to an existing document.
func (s *Store) Update(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		return document.ErrNotFound
	}

	doc.UpdatedAt = time.Now().UTC()
	s.docs[doc.ID] = *doc
	return nil
}

// Delete removes the document record.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// CountByStatus returns document counts keyed by lifecycle status.
func (s *Store) CountByStatus(_ context.Context) (map[document.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[document.Status]int)
	for _, doc := range s.docs {
		counts[doc.Status]++
	}
	return counts, nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return nil
}

var _ document.Store = (*Store)(nil)
