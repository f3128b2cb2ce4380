package domain

import "errors"

// Sentinel errors shared between layers.
var (
	// ErrNotFound indicates a listing does not exist in the catalog.
	ErrNotFound = errors.New("listing not found")

	// ErrNotIndexed indicates the semantic index holds no entries.
	ErrNotIndexed = errors.New("semantic index is empty")

	// ErrInvalidListing indicates a listing record violates catalog invariants.
	ErrInvalidListing = errors.New("invalid listing")

	// ErrEmbeddingProvider wraps failures of the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrCompletionProvider wraps failures of the language-model provider.
	ErrCompletionProvider = errors.New("completion provider error")
)
