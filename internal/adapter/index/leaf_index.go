package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"paperqa/internal/domain"
)

// LeafIndex is a brute-force cosine similarity index over the leaf-tier
// chunks of one paper. Exact scan is deliberate: a single paper has
// hundreds of leaves, where correctness beats sub-linear scaling.
type LeafIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	ready     bool
}

type entry struct {
	id     string
	vector []float32
}

// NewLeafIndex creates an empty, unbuilt index.
func NewLeafIndex() *LeafIndex {
	return &LeafIndex{}
}

// Build consumes the leaf chunks' embeddings. Every leaf must carry a
// vector of the same dimension.
func (x *LeafIndex) Build(leaves []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(leaves) == 0 {
		return fmt.Errorf("no leaves to index")
	}

	entries := make([]entry, 0, len(leaves))
	dimension := 0
	for _, leaf := range leaves {
		if len(leaf.Embedding) == 0 {
			return fmt.Errorf("leaf %s has no embedding", leaf.ID)
		}
		if dimension == 0 {
			dimension = len(leaf.Embedding)
		} else if len(leaf.Embedding) != dimension {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dimension, len(leaf.Embedding))
		}
		entries = append(entries, entry{id: leaf.ID, vector: leaf.Embedding})
	}

	x.entries = entries
	x.dimension = dimension
	x.ready = true
	return nil
}

// Search finds the k nearest leaves by cosine similarity, highest first.
// Ties are broken by ascending chunk id for determinism.
func (x *LeafIndex) Search(query []float32, k int) ([]domain.RetrievalHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.ready {
		return nil, fmt.Errorf("%w: build the index before searching", domain.ErrNotReady)
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dimension, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]domain.RetrievalHit, 0, len(x.entries))
	for _, e := range x.entries {
		hits = append(hits, domain.RetrievalHit{
			ChunkID: e.id,
			Score:   cosineSimilarity(query, e.vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
