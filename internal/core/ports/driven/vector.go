package driven

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// VectorStore manages isolated vector collections keyed by knowledge base
// and embedding identity. A collection is created on first use and is
// one-to-one with its knowledge base for the knowledge base's lifetime.
type VectorStore interface {
	// Collection returns the collection for the given key, creating it if
	// it does not exist. The returned handle is safe for concurrent use.
	Collection(ctx context.Context, kbID string, identity domain.EmbeddingIdentity) (VectorCollection, error)

	// DeleteCollection removes a collection and all its vectors.
	DeleteCollection(ctx context.Context, kbID string, identity domain.EmbeddingIdentity) error

	// Close releases resources.
	Close() error
}

// VectorCollection stores embeddings for one (knowledge base, identity)
// pair and answers nearest-neighbour queries.
type VectorCollection interface {
	// Upsert inserts or replaces vectors for the given chunks.
	// len(vectors) must equal len(chunks).
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error

	// Query finds the k nearest neighbours to the query vector by cosine
	// similarity. Scores are in [0,1], higher is more similar.
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)

	// Delete removes the given chunk IDs from the collection.
	// Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk.
	Chunk domain.Chunk

	// Similarity is the cosine similarity score in [0,1].
	Similarity float64
}
