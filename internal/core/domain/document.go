package domain

import "time"

// DocumentKind declares the structural family of a document.
// It selects the chunking strategy and the parsing path at ingestion.
type DocumentKind string

const (
	// KindPDF is structured text with recoverable section boundaries.
	KindPDF DocumentKind = "pdf"

	// KindMarkdown is markup text split at heading and paragraph boundaries.
	KindMarkdown DocumentKind = "markdown"

	// KindPlain is unstructured text split at paragraph and sentence boundaries.
	KindPlain DocumentKind = "plain"

	// KindImage has no text layer and always requires OCR.
	KindImage DocumentKind = "image"
)

// Valid returns true for a known document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindPDF, KindMarkdown, KindPlain, KindImage:
		return true
	}
	return false
}

// Document represents an uploaded or referenced file within a knowledge base.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// KnowledgeBaseID links to the owning KnowledgeBase.
	KnowledgeBaseID string

	// Name is the human-readable file name.
	Name string

	// Kind is the declared document kind.
	Kind DocumentKind

	// Content is the full extracted text after parsing.
	Content string

	// ParseSource records which parsing tier produced Content.
	ParseSource ParseSource

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// ChunkType tags the dominant structure of a chunk's text.
type ChunkType string

const (
	ChunkTypeHeading   ChunkType = "heading"
	ChunkTypeCode      ChunkType = "code"
	ChunkTypeTable     ChunkType = "table"
	ChunkTypeParagraph ChunkType = "paragraph"
	ChunkTypeShort     ChunkType = "short"
)

// Chunk is the atomic retrieval unit: a contiguous span of a document's
// text plus metadata. Chunks are immutable once produced; re-ingestion of
// a document replaces its chunk set atomically.
type Chunk struct {
	// ID is the globally unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text of this chunk, including any overlap prefix.
	Content string

	// Ordinal is the position within the document's chunk sequence.
	Ordinal int

	// Section is the structural tag (section or heading title) if known.
	Section string

	// Type classifies the chunk's dominant structure.
	Type ChunkType

	// OverlapLen is the number of leading bytes repeated from the previous
	// chunk. Stripping the first OverlapLen bytes of every chunk and
	// concatenating in ordinal order reconstructs the source text.
	OverlapLen int

	// Forced marks a chunk produced by a hard split inside a single unit
	// that alone exceeded the target size.
	Forced bool
}

// Body returns the chunk content with the overlap prefix removed.
func (c Chunk) Body() string {
	if c.OverlapLen <= 0 || c.OverlapLen > len(c.Content) {
		return c.Content
	}
	return c.Content[c.OverlapLen:]
}

// EmbeddingIdentity names one embedding space: provider, model and vector
// dimension. Embedding spaces are not comparable across identities.
type EmbeddingIdentity struct {
	// Provider is the service provider (e.g. "openai", "ollama").
	Provider string

	// Model is the embedding model name.
	Model string

	// Dimensions is the vector length produced by the model.
	Dimensions int
}

// String renders the identity as a stable collection-key component.
func (e EmbeddingIdentity) String() string {
	return e.Provider + "/" + e.Model
}

// KnowledgeBase is a named collection of documents bound to exactly one
// embedding identity for its lifetime. All chunks under a knowledge base
// are embedded with the same identity; changing the binding requires
// creating a new knowledge base.
type KnowledgeBase struct {
	// ID is the unique identifier for the knowledge base.
	ID string

	// Name is the human-readable name.
	Name string

	// Embedding is the bound embedding identity.
	Embedding EmbeddingIdentity

	// CreatedAt is when the knowledge base was created.
	CreatedAt time.Time
}
