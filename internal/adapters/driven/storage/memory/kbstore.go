// Package memory provides in-memory metadata stores, used in tests and
// as a lightweight default before SQLite persistence is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure KnowledgeBaseStore implements the interface.
var _ driven.KnowledgeBaseStore = (*KnowledgeBaseStore)(nil)

// KnowledgeBaseStore is an in-memory knowledge base registry.
type KnowledgeBaseStore struct {
	mu  sync.RWMutex
	kbs map[string]domain.KnowledgeBase
}

// NewKnowledgeBaseStore creates an empty registry.
func NewKnowledgeBaseStore() *KnowledgeBaseStore {
	return &KnowledgeBaseStore{
		kbs: make(map[string]domain.KnowledgeBase),
	}
}

// Create stores a new knowledge base.
func (s *KnowledgeBaseStore) Create(_ context.Context, kb domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.kbs[kb.ID]; ok {
		return fmt.Errorf("knowledge base %s: %w", kb.ID, domain.ErrAlreadyExists)
	}
	s.kbs[kb.ID] = kb
	return nil
}

// Get retrieves a knowledge base by ID.
func (s *KnowledgeBaseStore) Get(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kb, ok := s.kbs[id]
	if !ok {
		return nil, fmt.Errorf("knowledge base %s: %w", id, domain.ErrNotFound)
	}
	return &kb, nil
}

// List returns all knowledge bases sorted by name.
func (s *KnowledgeBaseStore) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.KnowledgeBase, 0, len(s.kbs))
	for _, kb := range s.kbs {
		out = append(out, kb)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Delete removes a knowledge base.
func (s *KnowledgeBaseStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.kbs[id]; !ok {
		return fmt.Errorf("knowledge base %s: %w", id, domain.ErrNotFound)
	}
	delete(s.kbs, id)
	return nil
}
