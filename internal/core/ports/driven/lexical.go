package driven

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// LexicalStore manages per-knowledge-base lexical indexes. Indexes are
// created on first use and are independent of the embedding identity.
type LexicalStore interface {
	// Index returns the lexical index for a knowledge base, creating it
	// if it does not exist.
	Index(ctx context.Context, kbID string) (LexicalIndex, error)

	// DeleteIndex removes a knowledge base's lexical index.
	DeleteIndex(ctx context.Context, kbID string) error
}

// LexicalIndex provides term-frequency relevance scoring over chunk text.
// It is queryable concurrently with the vector collection.
type LexicalIndex interface {
	// Add inserts or replaces chunks in the index.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// Query scores chunks against the query text and returns up to k hits
	// with positive relevance, best first. Scores are unbounded and
	// monotonically increasing with relevance.
	Query(ctx context.Context, query string, k int) ([]LexicalHit, error)

	// Delete removes the given chunk IDs from the index.
	// Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error
}

// LexicalHit is a lexical search result.
type LexicalHit struct {
	// Chunk is the matched chunk.
	Chunk domain.Chunk

	// Score is the relevance score (e.g. BM25).
	Score float64
}
