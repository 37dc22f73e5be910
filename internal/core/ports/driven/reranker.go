package driven

import "context"

// RerankService re-scores candidate texts against a query using an
// external re-ranking model. Services may omit candidates below their own
// confidence threshold; omitted candidates are treated as unranked.
type RerankService interface {
	// Name identifies the service for logging and warnings.
	Name() string

	// Rerank returns the ranked subset of the given candidate texts.
	Rerank(ctx context.Context, query string, texts []string) ([]RankedItem, error)
}

// RankedItem is one entry of a reranker response.
type RankedItem struct {
	// Index refers to the position in the submitted texts slice.
	Index int

	// Rank is the 1-based rank assigned by the service.
	Rank int

	// Relevance is the service's raw relevance score, if provided.
	Relevance float64
}
