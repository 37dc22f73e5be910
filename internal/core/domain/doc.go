// Package domain contains the core business entities and rules for the
// saga retrieval engine: documents, chunks, knowledge bases, retrieval
// candidates, service slots and the error taxonomy. It has no dependencies
// on infrastructure.
package domain
