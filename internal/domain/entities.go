package domain

import "time"

// Chunk is a contiguous span of document text at one tier of the hierarchy.
// Parent/child links are plain id references into the owning tree, never
// object pointers, so a tree serializes trivially.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tier      int       `json:"tier"`
	ParentID  string    `json:"parent_id,omitempty"`
	ChildIDs  []string  `json:"child_ids,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// IsLeaf reports whether the chunk sits at the finest tier.
func (c Chunk) IsLeaf() bool {
	return len(c.ChildIDs) == 0
}

// IsRoot reports whether the chunk has no parent.
func (c Chunk) IsRoot() bool {
	return c.ParentID == ""
}

// ChunkTree is the full output of the splitter: the coarsest-tier chunks
// plus every descendant, parents listed before their children. RootIDs
// preserves document order.
type ChunkTree struct {
	RootIDs []string
	Chunks  []Chunk
}

// Paper identifies one ingested document index.
type Paper struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Leaves   int       `json:"leaves,omitempty"`
	Ingested time.Time `json:"ingested,omitempty"`
}

// RetrievalHit is a transient (chunk id, similarity) pair produced by the
// leaf index and consumed by the resolver within a single query.
type RetrievalHit struct {
	ChunkID string
	Score   float64
}

// ResolvedNode is a final context unit chosen by the auto-merging resolver.
// It may reference an ancestor rather than a leaf.
type ResolvedNode struct {
	ChunkID string
	Score   float64
}

// Source is a cited snippet attached to an answer.
type Source struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// Answer is the query engine's output: generated text plus the resolved
// nodes it was grounded on, highest score first.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}
