package driving

import (
	"context"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// IngestService transforms raw documents into retrievable chunks.
type IngestService interface {
	// Ingest parses the raw document, chunks the extracted text and
	// commits the chunk set to the knowledge base's indexes. Re-ingesting
	// an existing document replaces its chunk set atomically.
	Ingest(ctx context.Context, kbID string, doc domain.Document, raw []byte) (*IngestReport, error)

	// Remove deletes a document and its chunks from all indexes.
	Remove(ctx context.Context, kbID, documentID string) error
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// DocumentID is the ingested document.
	DocumentID string

	// ChunkCount is the number of chunks committed.
	ChunkCount int

	// ParseSource is the parsing tier that produced the text.
	ParseSource domain.ParseSource

	// Warnings lists parse-tier failures absorbed on the way to success.
	Warnings []domain.Warning
}
