package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saga-labs/saga-core/internal/chunker"
	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/core/ports/driving"
	"github.com/saga-labs/saga-core/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.IngestService = (*Ingestor)(nil)

// ParseChain extracts text from raw document bytes, trying parsing tiers
// in priority order. Implemented by the parsing package.
type ParseChain interface {
	Parse(ctx context.Context, data []byte, kind domain.DocumentKind) (*domain.ParseResult, error)
}

// Ingestor turns raw documents into committed chunk sets. Writes to a
// knowledge base's indexes are serialised per knowledge base; the old
// chunk set stays queryable until the new one is fully stored, then the
// old entries are removed.
type Ingestor struct {
	kbStore  driven.KnowledgeBaseStore
	docStore driven.DocumentStore
	vectors  driven.VectorStore
	lexicals driven.LexicalStore
	embedder driven.EmbeddingService
	parser   ParseChain
	splitter *chunker.Splitter

	timeout time.Duration

	mu      sync.Mutex
	kbLocks map[string]*sync.Mutex
}

// NewIngestor creates an ingestion service.
func NewIngestor(
	kbStore driven.KnowledgeBaseStore,
	docStore driven.DocumentStore,
	vectors driven.VectorStore,
	lexicals driven.LexicalStore,
	embedder driven.EmbeddingService,
	parser ParseChain,
	splitter *chunker.Splitter,
) *Ingestor {
	return &Ingestor{
		kbStore:  kbStore,
		docStore: docStore,
		vectors:  vectors,
		lexicals: lexicals,
		embedder: embedder,
		parser:   parser,
		splitter: splitter,
		timeout:  DefaultCallTimeout,
		kbLocks:  make(map[string]*sync.Mutex),
	}
}

// SetCallTimeout bounds each embedding and index call.
func (s *Ingestor) SetCallTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// lockKB returns the serialisation lock for a knowledge base.
func (s *Ingestor) lockKB(kbID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.kbLocks[kbID]
	if !ok {
		lock = &sync.Mutex{}
		s.kbLocks[kbID] = lock
	}
	return lock
}

// Ingest parses, chunks, embeds and commits one document. Re-ingesting an
// existing document replaces its chunk set atomically: the new chunks are
// stored first and the old ones removed only afterwards.
func (s *Ingestor) Ingest(
	ctx context.Context, kbID string, doc domain.Document, raw []byte,
) (*driving.IngestReport, error) {
	logger.Section("Ingest")
	logger.Debug("Document %s (%s) into knowledge base %s", doc.Name, doc.Kind, kbID)

	kb, err := s.kbStore.Get(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("get knowledge base: %w", err)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.embedder.Identity() != kb.Embedding {
		return nil, fmt.Errorf("%w: active %s, knowledge base bound to %s",
			domain.ErrEmbeddingMismatch, s.embedder.Identity(), kb.Embedding)
	}

	text := doc.Content
	source := doc.ParseSource
	var warnings []domain.Warning

	if len(raw) > 0 {
		parsed, err := s.parser.Parse(ctx, raw, doc.Kind)
		if parsed != nil {
			warnings = parsed.Warnings
		}
		if err != nil {
			return nil, fmt.Errorf("parse document %s: %w", doc.Name, err)
		}
		text = parsed.Text
		source = parsed.Source
	}

	chunks, err := s.splitter.Split(text, doc.Kind)
	if err != nil {
		return nil, fmt.Errorf("chunk document %s: %w", doc.Name, err)
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	vectors, err := s.embedder.EmbedBatch(embedCtx, texts)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	lock := s.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.commit(ctx, kb, doc, text, source, chunks, vectors); err != nil {
		return nil, err
	}

	return &driving.IngestReport{
		DocumentID:  doc.ID,
		ChunkCount:  len(chunks),
		ParseSource: source,
		Warnings:    warnings,
	}, nil
}

// commit stores the new chunk set, then removes the replaced one.
// Caller holds the knowledge base lock.
func (s *Ingestor) commit(
	ctx context.Context,
	kb *domain.KnowledgeBase,
	doc domain.Document,
	text string,
	source domain.ParseSource,
	chunks []domain.Chunk,
	vectors [][]float32,
) error {
	old, err := s.docStore.ListChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list existing chunks: %w", err)
	}

	collection, err := s.vectors.Collection(ctx, kb.ID, kb.Embedding)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	index, err := s.lexicals.Index(ctx, kb.ID)
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}

	upsertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := collection.Upsert(upsertCtx, chunks, vectors); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	if err := index.Add(upsertCtx, chunks); err != nil {
		// Roll the vector side back so the indexes stay consistent.
		ids := chunkIDs(chunks)
		if delErr := collection.Delete(upsertCtx, ids); delErr != nil {
			logger.Warn("Rollback of %d vectors failed: %v", len(ids), delErr)
		}
		return fmt.Errorf("index chunks: %w", err)
	}

	now := time.Now().UTC()
	doc.KnowledgeBaseID = kb.ID
	doc.Content = text
	doc.ParseSource = source
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	// New set committed; drop the replaced chunks from both indexes.
	if len(old) > 0 {
		ids := chunkIDs(old)
		if err := collection.Delete(upsertCtx, ids); err != nil {
			logger.Warn("Removing %d replaced vectors failed: %v", len(ids), err)
		}
		if err := index.Delete(upsertCtx, ids); err != nil {
			logger.Warn("Removing %d replaced lexical entries failed: %v", len(ids), err)
		}
		logger.Debug("Replaced %d chunks of document %s", len(old), doc.ID)
	}

	return nil
}

// Remove deletes a document and its chunks from all indexes.
func (s *Ingestor) Remove(ctx context.Context, kbID, documentID string) error {
	kb, err := s.kbStore.Get(ctx, kbID)
	if err != nil {
		return fmt.Errorf("get knowledge base: %w", err)
	}

	lock := s.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	chunks, err := s.docStore.ListChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	ids := chunkIDs(chunks)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if len(ids) > 0 {
		collection, err := s.vectors.Collection(callCtx, kb.ID, kb.Embedding)
		if err != nil {
			return fmt.Errorf("open collection: %w", err)
		}
		if err := collection.Delete(callCtx, ids); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}

		index, err := s.lexicals.Index(callCtx, kb.ID)
		if err != nil {
			return fmt.Errorf("open lexical index: %w", err)
		}
		if err := index.Delete(callCtx, ids); err != nil {
			return fmt.Errorf("delete lexical entries: %w", err)
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	logger.Info("Removed document %s (%d chunks) from knowledge base %s", documentID, len(ids), kbID)
	return nil
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
