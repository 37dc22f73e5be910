package driving

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// RetrievalService answers queries with ranked passages.
type RetrievalService interface {
	// Retrieve runs hybrid retrieval across the given knowledge bases and
	// returns up to topK fused candidates per knowledge base, merged and
	// ordered by descending fused score.
	Retrieve(ctx context.Context, query string, kbIDs []string, topK int) (*domain.RetrievalResult, error)
}

// RerankStage re-orders a candidate list using configured reranker slots.
type RerankStage interface {
	// Rerank applies zero, one or two active reranker slots to the
	// candidates and returns the final ordering.
	Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, slots []domain.ServiceSlot) (*domain.RerankResult, error)
}
