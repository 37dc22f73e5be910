// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding, vector store, lexical index,
// reranker, parsing services and the metadata stores. The core consumes
// these capabilities and never implements them; all are in-process
// function-call boundaries mocked in tests.
package driven
