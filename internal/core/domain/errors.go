package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors. Per-service and
// per-knowledge-base failures with a usable fallback are downgraded to
// warnings instead; only exhaustion of all fallbacks surfaces as an error.
var (
	// ErrChunking indicates invalid chunker input: a non-positive target
	// size or text that is empty after normalisation.
	ErrChunking = errors.New("chunking failed")

	// ErrRetrieval indicates an unusable retrieval request (top_k <= 0)
	// or total backend unavailability across all queried knowledge bases.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrParsingFailed indicates every parsing tier was exhausted.
	// Fatal to ingestion of that document only.
	ErrParsingFailed = errors.New("parsing failed")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrEmbeddingMismatch indicates a vector whose dimension does not
	// match the collection's bound embedding identity.
	ErrEmbeddingMismatch = errors.New("embedding identity mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)
