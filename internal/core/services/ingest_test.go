package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saga-labs/saga-core/internal/adapters/driven/lexical/bm25"
	"github.com/saga-labs/saga-core/internal/adapters/driven/storage/memory"
	vectormem "github.com/saga-labs/saga-core/internal/adapters/driven/vector/memory"
	"github.com/saga-labs/saga-core/internal/chunker"
	"github.com/saga-labs/saga-core/internal/core/domain"
)

// --- Mock implementations ---

// fakeParseChain implements ParseChain for testing.
type fakeParseChain struct {
	result *domain.ParseResult
	err    error
}

func (p *fakeParseChain) Parse(_ context.Context, _ []byte, _ domain.DocumentKind) (*domain.ParseResult, error) {
	return p.result, p.err
}

// --- Test helpers ---

type ingestFixture struct {
	ingestor *Ingestor
	kbStore  *memory.KnowledgeBaseStore
	docStore *memory.DocumentStore
	vectors  *vectormem.Store
	lexicals *bm25.Store
}

func newIngestFixture(t *testing.T, parser ParseChain) *ingestFixture {
	t.Helper()

	f := &ingestFixture{
		kbStore:  setupKBStore(t, "kb-1"),
		docStore: memory.NewDocumentStore(),
		vectors:  vectormem.NewStore(),
		lexicals: bm25.NewStore(),
	}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}
	splitter := chunker.New(chunker.WithTargetSize(200), chunker.WithOverlapRatio(0.1))

	f.ingestor = NewIngestor(
		f.kbStore, f.docStore, f.vectors, f.lexicals, embedder, parser, splitter)
	return f
}

func (f *ingestFixture) lexicalHits(t *testing.T, query string) int {
	t.Helper()
	index, err := f.lexicals.Index(context.Background(), "kb-1")
	require.NoError(t, err)
	hits, err := index.Query(context.Background(), query, 100)
	require.NoError(t, err)
	return len(hits)
}

// --- Tests ---

func TestIngestor_Ingest_CommitsChunksToAllStores(t *testing.T) {
	parser := &fakeParseChain{result: &domain.ParseResult{
		Text:   "The polar bear is the largest land carnivore alive today.",
		Source: domain.ParseSourceLocal,
	}}
	f := newIngestFixture(t, parser)

	doc := domain.Document{ID: "doc-1", Name: "bears.md", Kind: domain.KindMarkdown}
	report, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, "doc-1", report.DocumentID)
	assert.Equal(t, domain.ParseSourceLocal, report.ParseSource)
	assert.Greater(t, report.ChunkCount, 0)

	stored, err := f.docStore.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "kb-1", stored.KnowledgeBaseID)
	assert.Equal(t, parser.result.Text, stored.Content)
	assert.False(t, stored.UpdatedAt.IsZero())

	chunks, err := f.docStore.ListChunks(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, report.ChunkCount)
	for _, c := range chunks {
		assert.Equal(t, "doc-1", c.DocumentID)
	}

	assert.Equal(t, report.ChunkCount, f.lexicalHits(t, "polar bear"))
}

func TestIngestor_Ingest_ReingestReplacesChunkSet(t *testing.T) {
	parser := &fakeParseChain{result: &domain.ParseResult{
		Text:   "First version about whales.",
		Source: domain.ParseSourceLocal,
	}}
	f := newIngestFixture(t, parser)

	doc := domain.Document{ID: "doc-1", Name: "notes.md", Kind: domain.KindMarkdown}
	_, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("v1"))
	require.NoError(t, err)

	parser.result = &domain.ParseResult{
		Text:   "Second version about dolphins.",
		Source: domain.ParseSourceLocal,
	}
	report, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("v2"))
	require.NoError(t, err)

	chunks, err := f.docStore.ListChunks(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, report.ChunkCount)

	// Only the new content is findable.
	assert.Zero(t, f.lexicalHits(t, "whales"))
	assert.Greater(t, f.lexicalHits(t, "dolphins"), 0)
}

func TestIngestor_Ingest_SurfacesParseWarnings(t *testing.T) {
	parser := &fakeParseChain{result: &domain.ParseResult{
		Text:   "recovered text",
		Source: domain.ParseSourceSecondary,
		Warnings: []domain.Warning{{
			Kind: domain.WarnParseAttempt, Source: "primary", Message: "timeout",
		}},
	}}
	f := newIngestFixture(t, parser)

	doc := domain.Document{ID: "doc-1", Name: "scan.pdf", Kind: domain.KindPDF}
	report, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, domain.ParseSourceSecondary, report.ParseSource)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "primary", report.Warnings[0].Source)
}

func TestIngestor_Ingest_ParseFailureAborts(t *testing.T) {
	parser := &fakeParseChain{
		result: &domain.ParseResult{Warnings: []domain.Warning{
			{Kind: domain.WarnParseAttempt, Source: "local", Message: "no text layer"},
		}},
		err: domain.ErrParsingFailed,
	}
	f := newIngestFixture(t, parser)

	doc := domain.Document{ID: "doc-1", Name: "scan.pdf", Kind: domain.KindPDF}
	_, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParsingFailed))

	_, err = f.docStore.GetDocument(context.Background(), "doc-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIngestor_Ingest_UnknownKnowledgeBase(t *testing.T) {
	f := newIngestFixture(t, &fakeParseChain{result: &domain.ParseResult{Text: "text"}})

	doc := domain.Document{ID: "doc-1", Name: "a.md", Kind: domain.KindMarkdown}
	_, err := f.ingestor.Ingest(context.Background(), "kb-missing", doc, []byte("raw"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIngestor_Ingest_NoEmbedder(t *testing.T) {
	f := newIngestFixture(t, &fakeParseChain{result: &domain.ParseResult{Text: "text"}})
	f.ingestor.embedder = nil

	doc := domain.Document{ID: "doc-1", Name: "a.md", Kind: domain.KindMarkdown}
	_, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}

func TestIngestor_Ingest_EmbeddingIdentityMismatch(t *testing.T) {
	f := newIngestFixture(t, &fakeParseChain{result: &domain.ParseResult{Text: "text"}})
	f.ingestor.embedder = &mockEmbeddingService{
		vector:   []float32{1, 0, 0},
		identity: domain.EmbeddingIdentity{Provider: "other", Model: "other-model", Dimensions: 3},
	}

	doc := domain.Document{ID: "doc-1", Name: "a.md", Kind: domain.KindMarkdown}
	_, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingMismatch))
}

func TestIngestor_Ingest_UsesDocumentContentWhenRawEmpty(t *testing.T) {
	// A nil parse chain result must never be touched when raw is empty.
	f := newIngestFixture(t, &fakeParseChain{err: errors.New("must not be called")})

	doc := domain.Document{
		ID:          "doc-1",
		Name:        "a.md",
		Kind:        domain.KindMarkdown,
		Content:     "pre-extracted text about glaciers",
		ParseSource: domain.ParseSourcePrimary,
	}
	report, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.ParseSourcePrimary, report.ParseSource)
	assert.Greater(t, f.lexicalHits(t, "glaciers"), 0)
}

func TestIngestor_Remove_DeletesEverywhere(t *testing.T) {
	parser := &fakeParseChain{result: &domain.ParseResult{
		Text:   "Text about volcanoes and magma chambers.",
		Source: domain.ParseSourceLocal,
	}}
	f := newIngestFixture(t, parser)

	doc := domain.Document{ID: "doc-1", Name: "geo.md", Kind: domain.KindMarkdown}
	_, err := f.ingestor.Ingest(context.Background(), "kb-1", doc, []byte("raw"))
	require.NoError(t, err)

	require.NoError(t, f.ingestor.Remove(context.Background(), "kb-1", "doc-1"))

	_, err = f.docStore.GetDocument(context.Background(), "doc-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, f.lexicalHits(t, "volcanoes"))
}

func TestIngestor_Remove_UnknownDocument(t *testing.T) {
	f := newIngestFixture(t, &fakeParseChain{result: &domain.ParseResult{Text: "text"}})

	err := f.ingestor.Remove(context.Background(), "kb-1", "doc-missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
