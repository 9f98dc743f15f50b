package usecase

import (
	"fmt"
	"sort"

	"paperqa/internal/domain"
	"paperqa/internal/port"
)

// AutoMergeResolver post-processes leaf retrieval hits by walking the
// chunk tree upward. Leaf retrieval is precise but fragmented: when a
// question is answered by a whole section, several sibling leaves score
// well individually. Once a parent's children are sufficiently covered by
// the hit set, the resolver replaces them with the parent itself,
// reclaiming the connecting text and freeing context budget.
//
// Resolve is a pure function of its inputs; resolving the same hit set
// twice yields the same nodes.
type AutoMergeResolver struct {
	store     port.ChunkStore
	threshold float64
}

// NewAutoMergeResolver creates a resolver. threshold is the coverage
// ratio in (0, 1] a parent's children must reach before the group merges;
// 1.0 requires every child to be present.
func NewAutoMergeResolver(store port.ChunkStore, threshold float64) (*AutoMergeResolver, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: merge threshold must be in (0, 1], got %v", domain.ErrConfiguration, threshold)
	}
	return &AutoMergeResolver{
		store:     store,
		threshold: threshold,
	}, nil
}

// Resolve merges hits upward tier by tier until no group reaches the
// coverage threshold. Nodes already at the coarsest tier pass through
// unchanged. When two branches collapse into the same ancestor the scores
// combine by maximum, the same rule used when a group merges.
func (r *AutoMergeResolver) Resolve(hits []domain.RetrievalHit) ([]domain.ResolvedNode, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	// Working set: chunk id -> best score seen for it.
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if s, ok := scores[h.ChunkID]; !ok || h.Score > s {
			scores[h.ChunkID] = h.Score
		}
	}

	// Each pass lifts fully-covered groups one tier up, so the loop is
	// bounded by the tree depth.
	for {
		groups := make(map[string][]string)
		for id := range scores {
			c, err := r.store.Get(id)
			if err != nil {
				return nil, fmt.Errorf("resolve: %w", err)
			}
			if c.ParentID == "" {
				continue // coarsest tier, never merges further
			}
			groups[c.ParentID] = append(groups[c.ParentID], id)
		}

		merged := false
		for parentID, ids := range groups {
			parent, err := r.store.Get(parentID)
			if err != nil {
				return nil, fmt.Errorf("resolve: %w", err)
			}
			if len(parent.ChildIDs) == 0 {
				continue // ratio undefined, not eligible
			}

			coverage := float64(len(ids)) / float64(len(parent.ChildIDs))
			if coverage < r.threshold {
				continue
			}

			best := scores[ids[0]]
			for _, id := range ids[1:] {
				if scores[id] > best {
					best = scores[id]
				}
			}
			for _, id := range ids {
				delete(scores, id)
			}
			if s, ok := scores[parentID]; !ok || best > s {
				scores[parentID] = best
			}
			merged = true
		}

		if !merged {
			break
		}
	}

	nodes := make([]domain.ResolvedNode, 0, len(scores))
	for id, score := range scores {
		nodes = append(nodes, domain.ResolvedNode{ChunkID: id, Score: score})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Score != nodes[j].Score {
			return nodes[i].Score > nodes[j].Score
		}
		return nodes[i].ChunkID < nodes[j].ChunkID
	})
	return nodes, nil
}
