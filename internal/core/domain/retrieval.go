package domain

// RetrievalCandidate is a transient per-query record: one chunk with its
// independent signal scores, the fused score and the resulting rank.
type RetrievalCandidate struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// KnowledgeBaseID identifies the knowledge base that produced the hit.
	KnowledgeBaseID string

	// VectorScore is the normalised vector-similarity score in [0,1].
	// Nil when the chunk was not returned by the vector query.
	VectorScore *float64

	// LexicalScore is the normalised lexical relevance score in [0,1].
	// Nil when the chunk was not returned by the lexical query.
	LexicalScore *float64

	// FusedScore is the alpha-weighted blend of the two signals.
	FusedScore float64

	// RerankScore is the mixed reranker score, set only after reranking.
	RerankScore float64

	// Rank is the 1-based final position.
	Rank int
}

// WarningKind classifies non-fatal degradations surfaced to the caller.
type WarningKind string

const (
	// WarnPartialRetrieval marks a knowledge base whose indexes failed;
	// its candidates are excluded but the query still succeeded.
	WarnPartialRetrieval WarningKind = "partial_retrieval"

	// WarnRerankDegraded marks a reranker service failure; ordering fell
	// back to the surviving service or to the fused retrieval order.
	WarnRerankDegraded WarningKind = "rerank_degraded"

	// WarnParseAttempt marks a failed parsing tier that was skipped over.
	WarnParseAttempt WarningKind = "parse_attempt"
)

// Warning is a non-fatal failure accumulated alongside a successful result.
// Warnings are never dropped silently; callers are expected to surface them.
type Warning struct {
	// Kind classifies the degradation.
	Kind WarningKind

	// Source identifies the service or knowledge base that failed.
	Source string

	// Message is a short error summary.
	Message string
}

// RetrievalResult is the outcome of a hybrid retrieval call.
type RetrievalResult struct {
	// Candidates is the fused candidate list, ordered by descending score.
	Candidates []RetrievalCandidate

	// Warnings lists per-knowledge-base failures absorbed during the call.
	Warnings []Warning
}

// RerankResult is the outcome of a rerank call.
type RerankResult struct {
	// Candidates is the re-ordered candidate list.
	Candidates []RetrievalCandidate

	// Warnings lists reranker service failures absorbed during the call.
	Warnings []Warning

	// Degraded is true when at least one configured reranker failed and
	// the ordering fell back per the degradation rules.
	Degraded bool
}
