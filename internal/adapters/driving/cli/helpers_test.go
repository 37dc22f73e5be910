package cli

import (
	"context"

	"github.com/saga-labs/saga-core/internal/adapters/driven/lexical/bm25"
	"github.com/saga-labs/saga-core/internal/adapters/driven/storage/memory"
	vectormem "github.com/saga-labs/saga-core/internal/adapters/driven/vector/memory"
	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driving"
)

// --- Mock implementations ---

// mockRetrievalService implements driving.RetrievalService for testing.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, _ []string, _ int) (*domain.RetrievalResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	report  *driving.IngestReport
	err     error
	removed []string
}

func (m *mockIngestService) Ingest(_ context.Context, _ string, doc domain.Document, _ []byte) (*driving.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	report := *m.report
	report.DocumentID = doc.ID
	return &report, nil
}

func (m *mockIngestService) Remove(_ context.Context, _, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, documentID)
	return nil
}

// --- Test helpers ---

// setupTestServices installs in-memory stores and mock services so
// commands run without configuration or a database. The returned
// cleanup restores the package state.
func setupTestServices() func() {
	oldKBStore := kbStore
	oldDocumentStore := documentStore
	oldVectorStore := vectorStore
	oldLexicalStore := lexicalStore
	oldRetrieval := retrievalService
	oldRerank := rerankStage
	oldIngest := ingestService

	kbStore = memory.NewKnowledgeBaseStore()
	documentStore = memory.NewDocumentStore()
	vectorStore = vectormem.NewStore()
	lexicalStore = bm25.NewStore()
	retrievalService = &mockRetrievalService{
		result: &domain.RetrievalResult{
			Candidates: []domain.RetrievalCandidate{
				{
					Chunk:      domain.Chunk{ID: "c-1", Content: "alpha chunk", Section: "Intro"},
					FusedScore: 0.9,
					Rank:       1,
				},
				{
					Chunk:      domain.Chunk{ID: "c-2", Content: "beta chunk"},
					FusedScore: 0.4,
					Rank:       2,
				},
			},
		},
	}
	rerankStage = nil
	ingestService = &mockIngestService{
		report: &driving.IngestReport{
			ChunkCount:  3,
			ParseSource: domain.ParseSourceLocal,
		},
	}

	return func() {
		kbStore = oldKBStore
		documentStore = oldDocumentStore
		vectorStore = oldVectorStore
		lexicalStore = oldLexicalStore
		retrievalService = oldRetrieval
		rerankStage = oldRerank
		ingestService = oldIngest
	}
}
