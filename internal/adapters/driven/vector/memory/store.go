// Package memory provides an in-memory vector store with brute-force
// cosine search. Collections are isolated per (knowledge base, embedding
// identity) pair and created on first use.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// collectionKey isolates collections by knowledge base and identity.
type collectionKey struct {
	kbID     string
	identity domain.EmbeddingIdentity
}

// Store holds vector collections in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[collectionKey]*Collection
}

// NewStore creates an empty vector store.
func NewStore() *Store {
	return &Store{
		collections: make(map[collectionKey]*Collection),
	}
}

// Collection returns the collection for the key, creating it on first use.
func (s *Store) Collection(
	_ context.Context, kbID string, identity domain.EmbeddingIdentity,
) (driven.VectorCollection, error) {
	key := collectionKey{kbID: kbID, identity: identity}

	s.mu.RLock()
	c, ok := s.collections[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.collections[key]; ok {
		return c, nil
	}
	c = &Collection{
		dimensions: identity.Dimensions,
		entries:    make(map[string]entry),
	}
	s.collections[key] = c
	return c, nil
}

// DeleteCollection removes a collection and all its vectors.
func (s *Store) DeleteCollection(_ context.Context, kbID string, identity domain.EmbeddingIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collectionKey{kbID: kbID, identity: identity})
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// entry is one stored vector with its chunk.
type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// Collection stores vectors for one (knowledge base, identity) pair.
// Reads and writes are guarded by a RWMutex so concurrent queries never
// observe a partially applied upsert.
type Collection struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]entry
}

// Upsert inserts or replaces vectors for the given chunks.
func (c *Collection) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if c.dimensions > 0 && len(v) != c.dimensions {
			return fmt.Errorf("%w: vector has %d dimensions, collection expects %d",
				domain.ErrEmbeddingMismatch, len(v), c.dimensions)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, chunk := range chunks {
		c.entries[chunk.ID] = entry{
			chunk:  chunk,
			vector: vectors[i],
			norm:   vectorNorm(vectors[i]),
		}
	}
	return nil
}

// Query finds the k nearest neighbours by cosine similarity, mapped to
// [0,1] where 1 is identical direction.
func (c *Collection) Query(_ context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("query: k must be positive, got %d", k)
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			domain.ErrEmbeddingMismatch, len(vector), c.dimensions)
	}

	queryNorm := vectorNorm(vector)

	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(c.entries))
	for _, e := range c.entries {
		hits = append(hits, driven.VectorHit{
			Chunk:      e.chunk,
			Similarity: cosineSimilarity(vector, queryNorm, e.vector, e.norm),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the given chunk IDs. Unknown IDs are ignored.
func (c *Collection) Delete(_ context.Context, chunkIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range chunkIDs {
		delete(c.entries, id)
	}
	return nil
}

// Len returns the number of stored vectors.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cosineSimilarity maps the cosine of the angle between two vectors from
// [-1,1] to [0,1].
func cosineSimilarity(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cos := dot / (aNorm * bNorm)
	return (cos + 1) / 2
}

func vectorNorm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
