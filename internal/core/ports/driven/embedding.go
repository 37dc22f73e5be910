package driven

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
// Each service is bound to one embedding identity; vectors from different
// identities live in different spaces and must never be compared.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// This is more efficient than calling Embed in a loop for large batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Identity returns the embedding identity (provider, model, dimension)
	// this service produces vectors for.
	Identity() domain.EmbeddingIdentity

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
