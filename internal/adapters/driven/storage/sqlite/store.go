// Package sqlite provides SQLite-backed metadata storage for knowledge
// bases, documents and chunks. Vector and lexical data live in their own
// stores; this package only holds the durable source of truth.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/saga-labs/saga-core/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.saga/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".saga", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// KnowledgeBaseStore returns a KnowledgeBaseStore backed by this store.
func (s *Store) KnowledgeBaseStore() driven.KnowledgeBaseStore {
	return &knowledgeBaseStore{store: s}
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Knowledge Base Store ====================

// knowledgeBaseStore implements driven.KnowledgeBaseStore.
type knowledgeBaseStore struct {
	store *Store
}

var _ driven.KnowledgeBaseStore = (*knowledgeBaseStore)(nil)

// Create stores a new knowledge base.
func (s *knowledgeBaseStore) Create(ctx context.Context, kb domain.KnowledgeBase) error {
	if kb.CreatedAt.IsZero() {
		kb.CreatedAt = time.Now().UTC()
	}

	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_bases WHERE id = ?", kb.ID).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking knowledge base: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("knowledge base %s: %w", kb.ID, domain.ErrAlreadyExists)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases
			(id, name, embedding_provider, embedding_model, embedding_dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kb.ID, kb.Name, kb.Embedding.Provider, kb.Embedding.Model,
		kb.Embedding.Dimensions, kb.CreatedAt)

	if err != nil {
		return fmt.Errorf("creating knowledge base: %w", err)
	}
	return nil
}

// Get retrieves a knowledge base by ID.
func (s *knowledgeBaseStore) Get(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, embedding_provider, embedding_model, embedding_dimensions, created_at
		FROM knowledge_bases WHERE id = ?
	`, id)

	var kb domain.KnowledgeBase
	var createdAt sql.NullTime
	if err := row.Scan(&kb.ID, &kb.Name, &kb.Embedding.Provider,
		&kb.Embedding.Model, &kb.Embedding.Dimensions, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("knowledge base %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning knowledge base: %w", err)
	}
	if createdAt.Valid {
		kb.CreatedAt = createdAt.Time
	}

	return &kb, nil
}

// List returns all knowledge bases sorted by name.
func (s *knowledgeBaseStore) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, embedding_provider, embedding_model, embedding_dimensions, created_at
		FROM knowledge_bases ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []domain.KnowledgeBase //nolint:prealloc // size unknown from query
	for rows.Next() {
		var kb domain.KnowledgeBase
		var createdAt sql.NullTime
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Embedding.Provider,
			&kb.Embedding.Model, &kb.Embedding.Dimensions, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge base: %w", err)
		}
		if createdAt.Valid {
			kb.CreatedAt = createdAt.Time
		}
		kbs = append(kbs, kb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge bases: %w", err)
	}

	return kbs, nil
}

// Delete removes a knowledge base and, through cascades, its documents
// and chunks.
func (s *knowledgeBaseStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM knowledge_bases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("knowledge base %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, knowledge_base_id, name, kind, content, parse_source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			knowledge_base_id = excluded.knowledge_base_id,
			name = excluded.name,
			kind = excluded.kind,
			content = excluded.content,
			parse_source = excluded.parse_source,
			updated_at = excluded.updated_at
	`, doc.ID, doc.KnowledgeBaseID, doc.Name, string(doc.Kind), doc.Content,
		string(doc.ParseSource), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, knowledge_base_id, name, kind, content, parse_source, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns documents in a knowledge base sorted by name.
func (s *documentStore) ListDocuments(ctx context.Context, kbID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, knowledge_base_id, name, kind, content, parse_source, created_at, updated_at
		FROM documents WHERE knowledge_base_id = ? ORDER BY name
	`, kbID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		var kind, parseSource string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.Name, &kind,
			&doc.Content, &parseSource, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Kind = domain.DocumentKind(kind)
		doc.ParseSource = domain.ParseSource(parseSource)
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			doc.UpdatedAt = updatedAt.Time
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document and, through cascades, its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ReplaceChunks atomically replaces a document's chunk set in a single
// transaction.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, ordinal, section, chunk_type, overlap_len, forced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Content,
			chunk.Ordinal, chunk.Section, string(chunk.Type),
			chunk.OverlapLen, boolToInt(chunk.Forced)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListChunks returns a document's chunks in ordinal order.
func (s *documentStore) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, ordinal, section, chunk_type, overlap_len, forced
		FROM chunks WHERE document_id = ?
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var chunkType string
		var forced int
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
			&chunk.Ordinal, &chunk.Section, &chunkType,
			&chunk.OverlapLen, &forced); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Type = domain.ChunkType(chunkType)
		chunk.Forced = forced != 0
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// ==================== Helper Functions ====================

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var kind, parseSource string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.Name, &kind,
		&doc.Content, &parseSource, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Kind = domain.DocumentKind(kind)
	doc.ParseSource = domain.ParseSource(parseSource)
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
