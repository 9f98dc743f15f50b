package store

import (
	"fmt"

	"paperqa/internal/domain"
)

// TreeStore is the in-memory arena holding one document's chunk tree.
// Chunks are indexed by id with parent/child links as plain id references.
// Read-only after InsertTree except for AttachEmbedding during ingestion.
type TreeStore struct {
	chunks  map[string]domain.Chunk
	order   []string // insertion order, for stable serialization
	rootIDs []string
	leafIDs []string // document order
}

// NewTreeStore creates an empty TreeStore.
func NewTreeStore() *TreeStore {
	return &TreeStore{
		chunks: make(map[string]domain.Chunk),
	}
}

// InsertTree loads a full chunk tree, enforcing the tree invariants.
// A tree with duplicate ids, a cycle, a missing or inconsistent parent
// link, or tier ordering violations is rejected.
func (s *TreeStore) InsertTree(tree *domain.ChunkTree) error {
	if tree == nil || len(tree.Chunks) == 0 {
		return fmt.Errorf("%w: empty tree", domain.ErrIntegrity)
	}

	chunks := make(map[string]domain.Chunk, len(tree.Chunks))
	order := make([]string, 0, len(tree.Chunks))
	for _, c := range tree.Chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk with empty id", domain.ErrIntegrity)
		}
		if _, dup := chunks[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk id %s", domain.ErrIntegrity, c.ID)
		}
		chunks[c.ID] = c
		order = append(order, c.ID)
	}

	for _, c := range chunks {
		if c.ParentID != "" {
			parent, ok := chunks[c.ParentID]
			if !ok {
				return fmt.Errorf("%w: chunk %s references missing parent %s", domain.ErrIntegrity, c.ID, c.ParentID)
			}
			if !containsID(parent.ChildIDs, c.ID) {
				return fmt.Errorf("%w: parent %s does not list child %s", domain.ErrIntegrity, parent.ID, c.ID)
			}
			if c.Tier != parent.Tier+1 {
				return fmt.Errorf("%w: chunk %s at tier %d under parent tier %d", domain.ErrIntegrity, c.ID, c.Tier, parent.Tier)
			}
		}
		for _, childID := range c.ChildIDs {
			child, ok := chunks[childID]
			if !ok {
				return fmt.Errorf("%w: chunk %s lists missing child %s", domain.ErrIntegrity, c.ID, childID)
			}
			if child.ParentID != c.ID {
				return fmt.Errorf("%w: child %s does not reference parent %s", domain.ErrIntegrity, childID, c.ID)
			}
		}
	}

	// Cycle check: the ancestor chain from any chunk must reach a root
	// within len(chunks) steps.
	for id := range chunks {
		cur := chunks[id]
		for steps := 0; cur.ParentID != ""; steps++ {
			if steps > len(chunks) {
				return fmt.Errorf("%w: cycle involving chunk %s", domain.ErrIntegrity, id)
			}
			cur = chunks[cur.ParentID]
		}
	}

	rootIDs := make([]string, 0, len(tree.RootIDs))
	for _, id := range tree.RootIDs {
		c, ok := chunks[id]
		if !ok {
			return fmt.Errorf("%w: missing root chunk %s", domain.ErrIntegrity, id)
		}
		if c.ParentID != "" {
			return fmt.Errorf("%w: root chunk %s has a parent", domain.ErrIntegrity, id)
		}
		rootIDs = append(rootIDs, id)
	}

	s.chunks = chunks
	s.order = order
	s.rootIDs = rootIDs
	s.leafIDs = s.collectLeaves()
	return nil
}

// collectLeaves walks the tree depth-first in child order so leaves come
// out in document order.
func (s *TreeStore) collectLeaves() []string {
	var leaves []string
	var walk func(id string)
	walk = func(id string) {
		c := s.chunks[id]
		if len(c.ChildIDs) == 0 {
			leaves = append(leaves, id)
			return
		}
		for _, childID := range c.ChildIDs {
			walk(childID)
		}
	}
	for _, id := range s.rootIDs {
		walk(id)
	}
	return leaves
}

// Get returns the chunk with the given id.
func (s *TreeStore) Get(id string) (domain.Chunk, error) {
	c, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk not found: %s", id)
	}
	return c, nil
}

// Parent returns the parent of the given chunk, or ok=false at a root.
func (s *TreeStore) Parent(id string) (domain.Chunk, bool, error) {
	c, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, false, fmt.Errorf("chunk not found: %s", id)
	}
	if c.ParentID == "" {
		return domain.Chunk{}, false, nil
	}
	return s.chunks[c.ParentID], true, nil
}

// Leaves returns all finest-tier chunks in document order.
func (s *TreeStore) Leaves() []domain.Chunk {
	leaves := make([]domain.Chunk, 0, len(s.leafIDs))
	for _, id := range s.leafIDs {
		leaves = append(leaves, s.chunks[id])
	}
	return leaves
}

// Roots returns the coarsest-tier chunks in document order.
func (s *TreeStore) Roots() []domain.Chunk {
	roots := make([]domain.Chunk, 0, len(s.rootIDs))
	for _, id := range s.rootIDs {
		roots = append(roots, s.chunks[id])
	}
	return roots
}

// AttachEmbedding records the embedding vector for a chunk.
func (s *TreeStore) AttachEmbedding(id string, vector []float32) error {
	c, ok := s.chunks[id]
	if !ok {
		return fmt.Errorf("chunk not found: %s", id)
	}
	c.Embedding = vector
	s.chunks[id] = c
	return nil
}

// Tree returns the stored tree in insertion order, for persistence.
func (s *TreeStore) Tree() *domain.ChunkTree {
	tree := &domain.ChunkTree{
		RootIDs: append([]string(nil), s.rootIDs...),
		Chunks:  make([]domain.Chunk, 0, len(s.order)),
	}
	for _, id := range s.order {
		tree.Chunks = append(tree.Chunks, s.chunks[id])
	}
	return tree
}

// Len returns the total number of chunks.
func (s *TreeStore) Len() int {
	return len(s.chunks)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
