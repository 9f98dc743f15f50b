package domain

import "errors"

// Error taxonomy. Each failure aborts the current operation and is wrapped
// with one of these sentinels so callers can branch on errors.Is.
var (
	// ErrConfiguration marks invalid settings such as non-decreasing tier sizes
	// or a merge threshold outside (0, 1].
	ErrConfiguration = errors.New("invalid configuration")

	// ErrIntegrity marks a malformed chunk tree: duplicate ids, cycles, or
	// parent/child links that disagree.
	ErrIntegrity = errors.New("chunk tree integrity violation")

	// ErrNotReady marks a leaf index queried before it was built.
	ErrNotReady = errors.New("leaf index not built")

	// ErrParse marks a layout parser failure on the uploaded document.
	ErrParse = errors.New("document parse failed")

	// ErrEmbedding marks an embedding service failure. Ingestion aborts whole;
	// no partial index is persisted.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrGeneration marks a generation service failure at query time.
	ErrGeneration = errors.New("generation service failed")

	// ErrIndexNotFound marks a query or delete against an unknown paper id.
	ErrIndexNotFound = errors.New("paper index not found")
)
