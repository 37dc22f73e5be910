// Package services implements the core use cases: hybrid retrieval with
// score fusion, single/dual reranker mixing, document ingestion with
// atomic chunk-set replacement, and the generic ordered-fallback executor
// shared by the parsing chain.
package services
