package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saga-labs/saga-core/internal/adapters/driven/storage/memory"
	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	vector   []float32
	embedErr error
	identity domain.EmbeddingIdentity
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbeddingService) Identity() domain.EmbeddingIdentity {
	return m.identity
}

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockVectorCollection implements driven.VectorCollection for testing.
type mockVectorCollection struct {
	hits     []driven.VectorHit
	queryErr error
}

func (m *mockVectorCollection) Upsert(_ context.Context, _ []domain.Chunk, _ [][]float32) error {
	return nil
}

func (m *mockVectorCollection) Query(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorCollection) Delete(_ context.Context, _ []string) error { return nil }

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	collection *mockVectorCollection
	openErr    error
}

func (m *mockVectorStore) Collection(
	_ context.Context, _ string, _ domain.EmbeddingIdentity,
) (driven.VectorCollection, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.collection, nil
}

func (m *mockVectorStore) DeleteCollection(_ context.Context, _ string, _ domain.EmbeddingIdentity) error {
	return nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockLexicalIndex implements driven.LexicalIndex for testing.
type mockLexicalIndex struct {
	hits     []driven.LexicalHit
	queryErr error
}

func (m *mockLexicalIndex) Add(_ context.Context, _ []domain.Chunk) error { return nil }

func (m *mockLexicalIndex) Query(_ context.Context, _ string, k int) ([]driven.LexicalHit, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockLexicalIndex) Delete(_ context.Context, _ []string) error { return nil }

// mockLexicalStore implements driven.LexicalStore for testing.
type mockLexicalStore struct {
	index   *mockLexicalIndex
	openErr error
}

func (m *mockLexicalStore) Index(_ context.Context, _ string) (driven.LexicalIndex, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.index, nil
}

func (m *mockLexicalStore) DeleteIndex(_ context.Context, _ string) error { return nil }

// --- Test helpers ---

var testIdentity = domain.EmbeddingIdentity{Provider: "test", Model: "test-embed", Dimensions: 3}

func setupKBStore(t *testing.T, ids ...string) *memory.KnowledgeBaseStore {
	t.Helper()
	store := memory.NewKnowledgeBaseStore()
	for _, id := range ids {
		require.NoError(t, store.Create(context.Background(), domain.KnowledgeBase{
			ID:        id,
			Name:      id,
			Embedding: testIdentity,
		}))
	}
	return store
}

func chunk(id string, ordinal int) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: "doc-1", Content: "content " + id, Ordinal: ordinal}
}

func candidateIDs(candidates []domain.RetrievalCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Chunk.ID
	}
	return out
}

// --- Tests ---

func TestRetriever_Retrieve_InvalidTopK(t *testing.T) {
	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{}, &mockLexicalStore{}, nil)

	_, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRetrieval))
}

func TestRetriever_Retrieve_EmptyQuery(t *testing.T) {
	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{}, &mockLexicalStore{}, nil)

	result, err := r.Retrieve(context.Background(), "   ", []string{"kb-1"}, 5)

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
}

func TestRetriever_Retrieve_NoKnowledgeBases(t *testing.T) {
	r := NewRetriever(setupKBStore(t), &mockVectorStore{}, &mockLexicalStore{}, nil)

	result, err := r.Retrieve(context.Background(), "query", nil, 5)

	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
}

func TestRetriever_Retrieve_FusesBothSignals(t *testing.T) {
	// Vector ranks A over B; lexical ranks B over C. After per-signal
	// normalisation A and B tie at 0.5 and the tie breaks by ordinal.
	vectors := &mockVectorStore{collection: &mockVectorCollection{hits: []driven.VectorHit{
		{Chunk: chunk("A", 0), Similarity: 0.9},
		{Chunk: chunk("B", 1), Similarity: 0.5},
	}}}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("B", 1), Score: 10},
		{Chunk: chunk("C", 2), Score: 2},
	}}}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, candidateIDs(result.Candidates))
	assert.Empty(t, result.Warnings)

	a := result.Candidates[0]
	require.NotNil(t, a.VectorScore)
	assert.InDelta(t, 1.0, *a.VectorScore, 1e-9)
	assert.Nil(t, a.LexicalScore)
	assert.InDelta(t, 0.5, a.FusedScore, 1e-9)

	b := result.Candidates[1]
	require.NotNil(t, b.VectorScore)
	require.NotNil(t, b.LexicalScore)
	assert.InDelta(t, 0.5, b.FusedScore, 1e-9)

	c := result.Candidates[2]
	assert.Nil(t, c.VectorScore)
	assert.InDelta(t, 0.0, c.FusedScore, 1e-9)

	for i, cand := range result.Candidates {
		assert.Equal(t, i+1, cand.Rank)
	}
}

func TestRetriever_Retrieve_HigherSignalRaisesRank(t *testing.T) {
	vectors := &mockVectorStore{collection: &mockVectorCollection{hits: []driven.VectorHit{
		{Chunk: chunk("A", 0), Similarity: 0.9},
		{Chunk: chunk("B", 1), Similarity: 0.95},
	}}}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("B", 1), Score: 10},
		{Chunk: chunk("C", 2), Score: 2},
	}}}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 10)

	require.NoError(t, err)
	assert.Equal(t, "B", result.Candidates[0].Chunk.ID)
}

func TestRetriever_Retrieve_Deterministic(t *testing.T) {
	vectors := &mockVectorStore{collection: &mockVectorCollection{hits: []driven.VectorHit{
		{Chunk: chunk("A", 0), Similarity: 0.8},
		{Chunk: chunk("B", 1), Similarity: 0.6},
	}}}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("C", 2), Score: 4},
		{Chunk: chunk("D", 3), Score: 3},
	}}}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder)

	first, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 10)
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 10)
	require.NoError(t, err)

	assert.Equal(t, candidateIDs(first.Candidates), candidateIDs(second.Candidates))
}

func TestRetriever_Retrieve_TruncatesToTopK(t *testing.T) {
	hits := make([]driven.LexicalHit, 8)
	for i := range hits {
		hits[i] = driven.LexicalHit{Chunk: chunk(string(rune('A'+i)), i), Score: float64(10 - i)}
	}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: hits}}

	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{collection: &mockVectorCollection{}}, lexicals, nil)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 3)

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 3)
}

func TestRetriever_Retrieve_LexicalOnlyWithoutEmbedder(t *testing.T) {
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("A", 0), Score: 5},
	}}}

	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{}, lexicals, nil)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 5)

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Nil(t, result.Candidates[0].VectorScore)
	require.NotNil(t, result.Candidates[0].LexicalScore)
}

func TestRetriever_Retrieve_EmbeddingMismatchFallsBackToLexical(t *testing.T) {
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("A", 0), Score: 5},
	}}}
	embedder := &mockEmbeddingService{
		vector:   []float32{1, 0, 0},
		identity: domain.EmbeddingIdentity{Provider: "other", Model: "other-model", Dimensions: 8},
	}

	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{collection: &mockVectorCollection{}}, lexicals, embedder)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 5)

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Nil(t, result.Candidates[0].VectorScore)
}

func TestRetriever_Retrieve_PartialFailureWarns(t *testing.T) {
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("A", 0), Score: 5},
	}}}

	// kb-2 is not registered, so it fails while kb-1 still answers.
	r := NewRetriever(setupKBStore(t, "kb-1"), &mockVectorStore{}, lexicals, nil)
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1", "kb-2"}, 5)

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 1)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.WarnPartialRetrieval, result.Warnings[0].Kind)
	assert.Equal(t, "kb-2", result.Warnings[0].Source)
}

func TestRetriever_Retrieve_AllKnowledgeBasesFail(t *testing.T) {
	r := NewRetriever(setupKBStore(t), &mockVectorStore{}, &mockLexicalStore{}, nil)

	_, err := r.Retrieve(context.Background(), "query", []string{"kb-1", "kb-2"}, 5)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRetrieval))
}

func TestRetriever_Retrieve_BothSignalsFailForKB(t *testing.T) {
	vectors := &mockVectorStore{openErr: errors.New("vector store down")}
	lexicals := &mockLexicalStore{openErr: errors.New("lexical store down")}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder)
	_, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 5)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRetrieval))
}

func TestRetriever_Retrieve_MinSimilarityFilter(t *testing.T) {
	vectors := &mockVectorStore{collection: &mockVectorCollection{hits: []driven.VectorHit{
		{Chunk: chunk("A", 0), Similarity: 0.9},
		{Chunk: chunk("B", 1), Similarity: 0.3},
	}}}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{}}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder,
		WithMinSimilarity(0.5))
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, candidateIDs(result.Candidates))
}

func TestRetriever_Retrieve_AlphaZeroIgnoresVector(t *testing.T) {
	vectors := &mockVectorStore{collection: &mockVectorCollection{hits: []driven.VectorHit{
		{Chunk: chunk("A", 0), Similarity: 0.99},
	}}}
	lexicals := &mockLexicalStore{index: &mockLexicalIndex{hits: []driven.LexicalHit{
		{Chunk: chunk("B", 1), Score: 5},
	}}}
	embedder := &mockEmbeddingService{vector: []float32{1, 0, 0}, identity: testIdentity}

	r := NewRetriever(setupKBStore(t, "kb-1"), vectors, lexicals, embedder, WithAlpha(0))
	result, err := r.Retrieve(context.Background(), "query", []string{"kb-1"}, 5)

	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "B", result.Candidates[0].Chunk.ID)
}

func TestNormaliseScores(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, nil},
		{"single element", []float64{7}, []float64{1}},
		{"zero variance", []float64{3, 3, 3}, []float64{1, 1, 1}},
		{"scales to unit range", []float64{2, 6, 4}, []float64{0, 1, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]signalHit, len(tt.in))
			for i, s := range tt.in {
				hits[i] = signalHit{score: s}
			}

			got := normaliseScores(hits)

			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}
