package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/core/ports/driving"
	"github.com/saga-labs/saga-core/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.RetrievalService = (*Retriever)(nil)

// DefaultAlpha is the default vector weight in score fusion.
const DefaultAlpha = 0.5

// DefaultCallTimeout bounds every external call issued during retrieval.
const DefaultCallTimeout = 30 * time.Second

// signalHit is an intermediate per-signal result before fusion.
type signalHit struct {
	chunk domain.Chunk
	score float64
}

// Retriever performs hybrid retrieval: for each knowledge base it queries
// the vector collection and the lexical index concurrently, normalises both
// score lists and fuses them into one ranked candidate list.
type Retriever struct {
	kbStore  driven.KnowledgeBaseStore
	vectors  driven.VectorStore
	lexicals driven.LexicalStore
	embedder driven.EmbeddingService

	alpha         float64
	minSimilarity float64
	timeout       time.Duration
}

// RetrieverOption configures the retriever.
type RetrieverOption func(*Retriever)

// WithAlpha sets the vector weight in [0,1]; the lexical weight is 1-alpha.
func WithAlpha(alpha float64) RetrieverOption {
	return func(r *Retriever) {
		if alpha >= 0 && alpha <= 1 {
			r.alpha = alpha
		}
	}
}

// WithMinSimilarity drops vector hits below the given cosine similarity
// before fusion. Zero disables the filter.
func WithMinSimilarity(min float64) RetrieverOption {
	return func(r *Retriever) {
		r.minSimilarity = min
	}
}

// WithCallTimeout bounds each vector, lexical and embedding call.
func WithCallTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRetriever creates a hybrid retriever. The embedder may be nil, in
// which case retrieval degrades to lexical-only scoring.
func NewRetriever(
	kbStore driven.KnowledgeBaseStore,
	vectors driven.VectorStore,
	lexicals driven.LexicalStore,
	embedder driven.EmbeddingService,
	opts ...RetrieverOption,
) *Retriever {
	r := &Retriever{
		kbStore:  kbStore,
		vectors:  vectors,
		lexicals: lexicals,
		embedder: embedder,
		alpha:    DefaultAlpha,
		timeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs hybrid retrieval across the given knowledge bases.
// A single knowledge base's failure is absorbed as a warning; the call
// fails only for an invalid topK or when every knowledge base fails.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, kbIDs []string, topK int,
) (*domain.RetrievalResult, error) {
	logger.Section("Hybrid Retrieval")
	logger.Debug("Query: %q, knowledge bases: %d, topK: %d", query, len(kbIDs), topK)

	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrRetrieval, topK)
	}

	query = strings.TrimSpace(query)
	if query == "" || len(kbIDs) == 0 {
		return &domain.RetrievalResult{Candidates: []domain.RetrievalCandidate{}}, nil
	}

	var (
		merged   []domain.RetrievalCandidate
		warnings []domain.Warning
		failed   int
	)

	for _, kbID := range kbIDs {
		candidates, err := r.retrieveOne(ctx, query, kbID, topK)
		if err != nil {
			logger.Warn("Knowledge base %s failed: %v", kbID, err)
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarnPartialRetrieval,
				Source:  kbID,
				Message: err.Error(),
			})
			failed++
			continue
		}
		merged = append(merged, candidates...)
	}

	if failed == len(kbIDs) && failed > 0 {
		return nil, fmt.Errorf("%w: all %d knowledge bases unavailable", domain.ErrRetrieval, failed)
	}

	merged = dedupeCandidates(merged)
	sortCandidates(merged)
	if len(merged) > topK {
		merged = merged[:topK]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}

	logger.Info("Retrieval: %d candidates, %d warnings", len(merged), len(warnings))
	return &domain.RetrievalResult{Candidates: merged, Warnings: warnings}, nil
}

// retrieveOne queries one knowledge base's vector collection and lexical
// index concurrently and fuses the two score lists.
func (r *Retriever) retrieveOne(
	ctx context.Context, query, kbID string, topK int,
) ([]domain.RetrievalCandidate, error) {
	kb, err := r.kbStore.Get(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}

	var (
		vectorHits  []signalHit
		lexicalHits []signalHit
		vectorErr   error
		lexicalErr  error
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vectorHits, vectorErr = r.vectorQuery(ctx, query, kb, topK)
	}()

	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = r.lexicalQuery(ctx, query, kbID, topK)
	}()

	wg.Wait()

	if vectorErr != nil && lexicalErr != nil {
		return nil, fmt.Errorf("vector: %v; lexical: %v", vectorErr, lexicalErr)
	}
	if vectorErr != nil {
		logger.Warn("KB %s: vector query failed, lexical only: %v", kbID, vectorErr)
		vectorHits = nil
	}
	if lexicalErr != nil {
		logger.Warn("KB %s: lexical query failed, vector only: %v", kbID, lexicalErr)
		lexicalHits = nil
	}

	logger.Debug("KB %s: %d vector hits, %d lexical hits", kbID, len(vectorHits), len(lexicalHits))
	return r.fuse(kbID, vectorHits, lexicalHits), nil
}

// vectorQuery embeds the query and searches the knowledge base's
// collection. The embedding identity must match the knowledge base's
// binding; embedding spaces are not comparable across identities.
func (r *Retriever) vectorQuery(
	ctx context.Context, query string, kb *domain.KnowledgeBase, topK int,
) ([]signalHit, error) {
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if r.embedder.Identity() != kb.Embedding {
		return nil, fmt.Errorf("%w: active %s, knowledge base bound to %s",
			domain.ErrEmbeddingMismatch, r.embedder.Identity(), kb.Embedding)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vector, err := r.embedder.Embed(callCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	collection, err := r.vectors.Collection(callCtx, kb.ID, kb.Embedding)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	hits, err := collection.Query(callCtx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]signalHit, 0, len(hits))
	for _, hit := range hits {
		if r.minSimilarity > 0 && hit.Similarity < r.minSimilarity {
			logger.Debug("Vector hit below similarity threshold: %.4f < %.4f", hit.Similarity, r.minSimilarity)
			continue
		}
		out = append(out, signalHit{chunk: hit.Chunk, score: hit.Similarity})
	}
	return out, nil
}

// lexicalQuery scores the query against the knowledge base's lexical index.
func (r *Retriever) lexicalQuery(
	ctx context.Context, query, kbID string, topK int,
) ([]signalHit, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	index, err := r.lexicals.Index(callCtx, kbID)
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	hits, err := index.Query(callCtx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}

	out := make([]signalHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, signalHit{chunk: hit.Chunk, score: hit.Score})
	}
	return out, nil
}

// fuse min-max normalises each signal list independently and blends them:
// fused = alpha*vector + (1-alpha)*lexical, a missing signal contributing 0.
func (r *Retriever) fuse(kbID string, vectorHits, lexicalHits []signalHit) []domain.RetrievalCandidate {
	vectorNorm := normaliseScores(vectorHits)
	lexicalNorm := normaliseScores(lexicalHits)

	byID := make(map[string]*domain.RetrievalCandidate)
	order := make([]string, 0, len(vectorHits)+len(lexicalHits))

	add := func(hit signalHit) *domain.RetrievalCandidate {
		if c, ok := byID[hit.chunk.ID]; ok {
			return c
		}
		c := &domain.RetrievalCandidate{Chunk: hit.chunk, KnowledgeBaseID: kbID}
		byID[hit.chunk.ID] = c
		order = append(order, hit.chunk.ID)
		return c
	}

	for i, hit := range vectorHits {
		score := vectorNorm[i]
		add(hit).VectorScore = &score
	}
	for i, hit := range lexicalHits {
		score := lexicalNorm[i]
		add(hit).LexicalScore = &score
	}

	candidates := make([]domain.RetrievalCandidate, 0, len(order))
	for _, id := range order {
		c := byID[id]
		var v, l float64
		if c.VectorScore != nil {
			v = *c.VectorScore
		}
		if c.LexicalScore != nil {
			l = *c.LexicalScore
		}
		c.FusedScore = r.alpha*v + (1-r.alpha)*l
		candidates = append(candidates, *c)
	}
	return candidates
}

// normaliseScores min-max scales a score list to [0,1] within the returned
// set. A single-element or zero-variance list normalises to all 1.0.
func normaliseScores(hits []signalHit) []float64 {
	if len(hits) == 0 {
		return nil
	}

	min, max := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < min {
			min = h.score
		}
		if h.score > max {
			max = h.score
		}
	}

	norm := make([]float64, len(hits))
	if max == min {
		for i := range norm {
			norm[i] = 1.0
		}
		return norm
	}
	for i, h := range hits {
		norm[i] = (h.score - min) / (max - min)
	}
	return norm
}

// dedupeCandidates collapses duplicate chunk IDs, keeping the highest
// fused score. Chunk IDs are globally unique, so duplicates only occur if
// a backend returns the same chunk twice.
func dedupeCandidates(candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	seen := make(map[string]int, len(candidates))
	out := make([]domain.RetrievalCandidate, 0, len(candidates))

	for _, c := range candidates {
		if idx, ok := seen[c.Chunk.ID]; ok {
			if c.FusedScore > out[idx].FusedScore {
				out[idx] = c
			}
			continue
		}
		seen[c.Chunk.ID] = len(out)
		out = append(out, c)
	}
	return out
}

// sortCandidates orders by descending fused score, breaking ties by
// ascending document ordinal so results are deterministic.
func sortCandidates(candidates []domain.RetrievalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].Chunk.Ordinal < candidates[j].Chunk.Ordinal
	})
}
