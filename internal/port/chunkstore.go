package port

import "paperqa/internal/domain"

// ChunkStore holds one document's chunk tree and embeddings. The tree is
// read-only after insert; the resolver and snippet assembly rely on the
// upward (Parent) and downward (Children) link lookups.
type ChunkStore interface {
	// InsertTree loads a full tree, enforcing the tree invariants.
	InsertTree(tree *domain.ChunkTree) error

	// Get returns the chunk with the given id.
	Get(id string) (domain.Chunk, error)

	// Parent returns the parent of the given chunk, or ok=false at the root.
	Parent(id string) (domain.Chunk, bool, error)

	// Leaves returns all finest-tier chunks in document order.
	Leaves() []domain.Chunk

	// Roots returns the coarsest-tier chunks in document order.
	Roots() []domain.Chunk

	// AttachEmbedding records the embedding vector for a chunk.
	AttachEmbedding(id string, vector []float32) error
}

// LeafIndex is a similarity search structure over leaf embeddings only.
type LeafIndex interface {
	// Build consumes the leaf chunks' embeddings.
	Build(leaves []domain.Chunk) error

	// Search returns the k nearest leaves, highest similarity first,
	// ties broken by chunk id.
	Search(query []float32, k int) ([]domain.RetrievalHit, error)
}
