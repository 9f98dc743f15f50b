package usecase

import (
	"errors"
	"testing"

	"paperqa/internal/adapter/store"
	"paperqa/internal/domain"
)

// resolverTree builds the fixture used throughout:
//
//	root
//	├── a ── a1, a2, a3
//	├── b ── b1, b2, b3
//	└── c ── c1, c2, c3
func resolverTree(t *testing.T) *store.TreeStore {
	t.Helper()

	tree := &domain.ChunkTree{RootIDs: []string{"root"}}
	tree.Chunks = append(tree.Chunks, domain.Chunk{
		ID: "root", Text: "whole document", Tier: 0, ChildIDs: []string{"a", "b", "c"},
	})
	for _, mid := range []string{"a", "b", "c"} {
		childIDs := []string{mid + "1", mid + "2", mid + "3"}
		tree.Chunks = append(tree.Chunks, domain.Chunk{
			ID: mid, Text: "section " + mid, Tier: 1, ParentID: "root", ChildIDs: childIDs,
		})
		for _, id := range childIDs {
			tree.Chunks = append(tree.Chunks, domain.Chunk{
				ID: id, Text: "leaf " + id, Tier: 2, ParentID: mid,
			})
		}
	}

	ts := store.NewTreeStore()
	if err := ts.InsertTree(tree); err != nil {
		t.Fatal(err)
	}
	return ts
}

func newResolver(t *testing.T, ts *store.TreeStore, threshold float64) *AutoMergeResolver {
	t.Helper()
	r, err := NewAutoMergeResolver(ts, threshold)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolverThresholdValidation(t *testing.T) {
	ts := resolverTree(t)
	for _, bad := range []float64{0, -0.5, 1.5} {
		if _, err := NewAutoMergeResolver(ts, bad); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration for threshold %v, got %v", bad, err)
		}
	}
	if _, err := NewAutoMergeResolver(ts, 1.0); err != nil {
		t.Errorf("threshold 1.0 should be valid: %v", err)
	}
}

func TestResolveEmpty(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	nodes, err := r.Resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestResolveNoMergeBelowThreshold(t *testing.T) {
	// One hit per section: coverage 1/3 stays below 0.5 everywhere.
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "b1", Score: 0.8},
		{ChunkID: "c1", Score: 0.7},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.ResolvedNode{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "b1", Score: 0.8},
		{ChunkID: "c1", Score: 0.7},
	}
	assertNodes(t, nodes, want)
}

func TestResolveMergesSiblings(t *testing.T) {
	// Two of a's three children hit: 2/3 >= 0.5 merges them into a.
	// b1 alone stays a leaf.
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.6},
		{ChunkID: "b1", Score: 0.7},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.ResolvedNode{
		{ChunkID: "a", Score: 0.9}, // max of merged children
		{ChunkID: "b1", Score: 0.7},
	}
	assertNodes(t, nodes, want)
}

func TestResolveWholeSectionBecomesSoleNode(t *testing.T) {
	// All three leaves under one section hit, nothing elsewhere: the
	// section is the single result.
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.8},
		{ChunkID: "a3", Score: 0.7},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{{ChunkID: "a", Score: 0.9}})
}

func TestResolveCascadesToRoot(t *testing.T) {
	// Hits cover two children in each of two sections. Both sections
	// merge, then the two merged sections are 2/3 of root's children
	// and merge again.
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.5},
		{ChunkID: "b1", Score: 0.8},
		{ChunkID: "b2", Score: 0.4},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.ResolvedNode{{ChunkID: "root", Score: 0.9}}
	assertNodes(t, nodes, want)
}

func TestResolveThresholdOneRequiresAllChildren(t *testing.T) {
	r := newResolver(t, resolverTree(t), 1.0)

	// Two of three children: no merge.
	nodes, err := r.Resolve([]domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.8},
	})
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.8},
	})

	// All three: merge.
	nodes, err = r.Resolve([]domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.8},
		{ChunkID: "a3", Score: 0.7},
	})
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{{ChunkID: "a", Score: 0.9}})
}

func TestResolveRootPassesThrough(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	nodes, err := r.Resolve([]domain.RetrievalHit{{ChunkID: "root", Score: 0.42}})
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{{ChunkID: "root", Score: 0.42}})
}

func TestResolveDedupsOnSharedAncestor(t *testing.T) {
	// A hit already on a parent and hits on its children collapse to
	// one node keeping the best score.
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a", Score: 0.5},
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.3},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{{ChunkID: "a", Score: 0.9}})
}

func TestResolveDuplicateHitsKeepBestScore(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.3},
		{ChunkID: "a1", Score: 0.8},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, nodes, []domain.ResolvedNode{{ChunkID: "a1", Score: 0.8}})
}

func TestResolveIdempotent(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "a1", Score: 0.9},
		{ChunkID: "a2", Score: 0.6},
		{ChunkID: "b1", Score: 0.7},
		{ChunkID: "c2", Score: 0.2},
	}

	first, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, second, first)

	// Feeding the output back in changes nothing further.
	asHits := make([]domain.RetrievalHit, len(first))
	for i, n := range first {
		asHits[i] = domain.RetrievalHit{ChunkID: n.ChunkID, Score: n.Score}
	}
	again, err := r.Resolve(asHits)
	if err != nil {
		t.Fatal(err)
	}
	assertNodes(t, again, first)
}

func TestResolveSortedOutput(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	hits := []domain.RetrievalHit{
		{ChunkID: "c3", Score: 0.5},
		{ChunkID: "a1", Score: 0.5},
		{ChunkID: "b2", Score: 0.9},
	}

	nodes, err := r.Resolve(hits)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.ResolvedNode{
		{ChunkID: "b2", Score: 0.9},
		{ChunkID: "a1", Score: 0.5}, // equal scores ordered by id
		{ChunkID: "c3", Score: 0.5},
	}
	assertNodes(t, nodes, want)
}

func TestResolveUnknownChunk(t *testing.T) {
	r := newResolver(t, resolverTree(t), 0.5)
	if _, err := r.Resolve([]domain.RetrievalHit{{ChunkID: "nope", Score: 1}}); err == nil {
		t.Error("expected error for hit on unknown chunk")
	}
}

func assertNodes(t *testing.T, got, want []domain.ResolvedNode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d nodes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].ChunkID != want[i].ChunkID {
			t.Errorf("node %d: expected %s, got %s", i, want[i].ChunkID, got[i].ChunkID)
		}
		if diff := got[i].Score - want[i].Score; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("node %s: expected score %v, got %v", want[i].ChunkID, want[i].Score, got[i].Score)
		}
	}
}
