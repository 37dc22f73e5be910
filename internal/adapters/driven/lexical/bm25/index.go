// Package bm25 provides an in-process lexical index scoring chunks with
// the Okapi BM25 ranking function. One index exists per knowledge base,
// independent of the embedding identity.
package bm25

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure Store and Index implement the interfaces.
var (
	_ driven.LexicalStore = (*Store)(nil)
	_ driven.LexicalIndex = (*Index)(nil)
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Store manages per-knowledge-base BM25 indexes, created on first use.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewStore creates an empty lexical store.
func NewStore() *Store {
	return &Store{
		indexes: make(map[string]*Index),
	}
}

// Index returns the lexical index for a knowledge base.
func (s *Store) Index(_ context.Context, kbID string) (driven.LexicalIndex, error) {
	s.mu.RLock()
	idx, ok := s.indexes[kbID]
	s.mu.RUnlock()
	if ok {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok = s.indexes[kbID]; ok {
		return idx, nil
	}
	idx = &Index{docs: make(map[string]indexedDoc)}
	s.indexes[kbID] = idx
	return idx, nil
}

// DeleteIndex removes a knowledge base's index.
func (s *Store) DeleteIndex(_ context.Context, kbID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, kbID)
	return nil
}

// indexedDoc is one chunk's term statistics.
type indexedDoc struct {
	chunk  domain.Chunk
	terms  map[string]int
	length int
}

// Index scores chunks against queries with BM25.
type Index struct {
	mu          sync.RWMutex
	docs        map[string]indexedDoc
	totalLength int
}

// Add inserts or replaces chunks in the index.
func (idx *Index) Add(_ context.Context, chunks []domain.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, chunk := range chunks {
		tokens := tokenize(chunk.Content)
		terms := make(map[string]int, len(tokens))
		for _, t := range tokens {
			terms[t]++
		}

		if old, ok := idx.docs[chunk.ID]; ok {
			idx.totalLength -= old.length
		}
		idx.docs[chunk.ID] = indexedDoc{chunk: chunk, terms: terms, length: len(tokens)}
		idx.totalLength += len(tokens)
	}
	return nil
}

// Delete removes the given chunk IDs. Unknown IDs are ignored.
func (idx *Index) Delete(_ context.Context, chunkIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range chunkIDs {
		if doc, ok := idx.docs[id]; ok {
			idx.totalLength -= doc.length
			delete(idx.docs, id)
		}
	}
	return nil
}

// Query returns up to k chunks with positive BM25 relevance, best first.
// Scores are unbounded and grow with relevance.
func (idx *Index) Query(_ context.Context, query string, k int) ([]driven.LexicalHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("query: k must be positive, got %d", k)
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}
	avgLength := float64(idx.totalLength) / float64(n)

	// Document frequency per distinct query term.
	df := make(map[string]int)
	for _, term := range dedupe(queryTerms) {
		for _, doc := range idx.docs {
			if doc.terms[term] > 0 {
				df[term]++
			}
		}
	}

	hits := make([]driven.LexicalHit, 0, n)
	for _, doc := range idx.docs {
		score := 0.0
		for _, term := range queryTerms {
			tf := doc.terms[term]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (float64(n)-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := 1 - b + b*float64(doc.length)/avgLength
			score += idf * float64(tf) * (k1 + 1) / (float64(tf) + k1*norm)
		}
		if score > 0 {
			hits = append(hits, driven.LexicalHit{Chunk: doc.chunk, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// tokenize lowercases and splits on non-letter, non-digit runes.
// CJK runes become single-rune tokens since they carry no spacing.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
