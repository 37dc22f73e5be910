package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory document and chunk store.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	chunks map[string][]domain.Chunk // by document ID, ordinal order
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

// SaveDocument inserts or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns all documents in a knowledge base sorted by name.
func (s *DocumentStore) ListDocuments(_ context.Context, kbID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0)
	for _, doc := range s.docs {
		if doc.KnowledgeBaseID == kbID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

// ReplaceChunks atomically replaces a document's chunk set.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].Ordinal < stored[j].Ordinal
	})
	s.chunks[documentID] = stored
	return nil
}

// ListChunks returns a document's chunks in ordinal order.
func (s *DocumentStore) ListChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.chunks[documentID]
	out := make([]domain.Chunk, len(stored))
	copy(out, stored)
	return out, nil
}
