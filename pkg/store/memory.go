package store

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/snapshot"
)

// MemoryStore keeps documents in a map. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]snapshot.Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]snapshot.Document)}
}

// Put upserts a document keyed by its ID.
func (s *MemoryStore) Put(_ context.Context, doc snapshot.Document) error {
	if doc.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document has no ID")
	}
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
	return nil
}

// Get retrieves a document by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (snapshot.Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return snapshot.Document{}, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %q not found", id)
	}
	return doc, nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %q not found", id)
	}
	delete(s.docs, id)
	return nil
}

// List returns all stored document IDs, sorted.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close(context.Context) error { return nil }
