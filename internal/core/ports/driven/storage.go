package driven

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// KnowledgeBaseStore persists the knowledge base registry.
// The registry enforces the one-embedding-identity-per-knowledge-base
// invariant; the vector store does not.
type KnowledgeBaseStore interface {
	// Create stores a new knowledge base.
	Create(ctx context.Context, kb domain.KnowledgeBase) error

	// Get retrieves a knowledge base by ID.
	Get(ctx context.Context, id string) (*domain.KnowledgeBase, error)

	// List returns all knowledge bases.
	List(ctx context.Context) ([]domain.KnowledgeBase, error)

	// Delete removes a knowledge base and its documents and chunks.
	Delete(ctx context.Context, id string) error
}

// DocumentStore persists documents and the chunk-to-document mapping.
type DocumentStore interface {
	// SaveDocument inserts or updates a document.
	SaveDocument(ctx context.Context, doc domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents in a knowledge base.
	ListDocuments(ctx context.Context, kbID string) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks atomically replaces a document's chunk set.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// ListChunks returns a document's chunks in ordinal order.
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}
