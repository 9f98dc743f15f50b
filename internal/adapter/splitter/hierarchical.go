package splitter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"paperqa/internal/adapter/analyzer"
	"paperqa/internal/domain"
)

// HierarchicalSplitter partitions document text into a tree of nested
// chunks at decreasing size tiers. Children partition their parent's text
// exactly, in document order, so concatenating the leaves under any chunk
// reproduces that chunk's text byte for byte.
//
// Every branch is carried down to the finest tier: a segment already
// shorter than the next tier's target still produces a single child with
// identical text, so all leaves sit at the same tier.
type HierarchicalSplitter struct {
	tierSizes []int
	tokenizer *analyzer.Tokenizer
}

// NewHierarchicalSplitter creates a splitter for the given token-count
// targets, coarsest first. Tier sizes must be non-empty, positive, and
// strictly decreasing.
func NewHierarchicalSplitter(tierSizes []int, tokenizer *analyzer.Tokenizer) (*HierarchicalSplitter, error) {
	if len(tierSizes) == 0 {
		return nil, fmt.Errorf("%w: no tier sizes given", domain.ErrConfiguration)
	}
	for i, size := range tierSizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: tier size must be positive, got %d", domain.ErrConfiguration, size)
		}
		if i > 0 && size >= tierSizes[i-1] {
			return nil, fmt.Errorf("%w: tier sizes must be strictly decreasing, got %v", domain.ErrConfiguration, tierSizes)
		}
	}
	return &HierarchicalSplitter{
		tierSizes: tierSizes,
		tokenizer: tokenizer,
	}, nil
}

// TierCount returns the number of tiers the splitter produces.
func (s *HierarchicalSplitter) TierCount() int {
	return len(s.tierSizes)
}

// Split builds the full chunk tree for the document text.
func (s *HierarchicalSplitter) Split(text string) (*domain.ChunkTree, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document text is empty")
	}

	tree := &domain.ChunkTree{}
	for _, seg := range s.segment(text, s.tierSizes[0]) {
		tree.RootIDs = append(tree.RootIDs, s.build(tree, seg, 0, ""))
	}
	return tree, nil
}

// build appends a chunk for text at the given tier and recurses into the
// next-finer tier. Returns the new chunk's id.
func (s *HierarchicalSplitter) build(tree *domain.ChunkTree, text string, tier int, parentID string) string {
	id := uuid.NewString()
	idx := len(tree.Chunks)
	tree.Chunks = append(tree.Chunks, domain.Chunk{
		ID:       id,
		Text:     text,
		Tier:     tier,
		ParentID: parentID,
	})

	if tier+1 < len(s.tierSizes) {
		segs := s.segment(text, s.tierSizes[tier+1])
		childIDs := make([]string, 0, len(segs))
		for _, seg := range segs {
			childIDs = append(childIDs, s.build(tree, seg, tier+1, id))
		}
		tree.Chunks[idx].ChildIDs = childIDs
	}

	return id
}

// segment splits text into pieces of approximately target tokens, cutting
// only at paragraph, sentence, or word boundaries. The pieces concatenate
// back to the input exactly.
func (s *HierarchicalSplitter) segment(text string, target int) []string {
	atoms := s.atomize(text, target)

	var segs []string
	var cur strings.Builder
	curTokens := 0

	for _, atom := range atoms {
		tokens := s.tokenizer.CountTokens(atom)
		if curTokens > 0 && curTokens+tokens > target {
			segs = append(segs, cur.String())
			cur.Reset()
			curTokens = 0
		}
		cur.WriteString(atom)
		curTokens += tokens
	}
	if cur.Len() > 0 {
		segs = append(segs, cur.String())
	}
	if len(segs) == 0 {
		segs = []string{text}
	}
	return segs
}

// atomize breaks text into indivisible pieces no larger than target where
// possible: paragraphs first, oversized paragraphs into sentences,
// oversized sentences into whitespace-delimited word runs. A single word
// is never split.
func (s *HierarchicalSplitter) atomize(text string, target int) []string {
	var atoms []string
	for _, para := range splitParagraphs(text) {
		if s.tokenizer.CountTokens(para) <= target {
			atoms = append(atoms, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if s.tokenizer.CountTokens(sent) <= target {
				atoms = append(atoms, sent)
				continue
			}
			atoms = append(atoms, splitWordRuns(sent)...)
		}
	}
	return atoms
}

// splitParagraphs cuts after each blank-line run. Delimiters stay attached
// to the preceding piece.
func splitParagraphs(text string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			j := i + 1
			for j < len(text) && text[j] == '\n' {
				j++
			}
			parts = append(parts, text[start:j])
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// splitSentences cuts after sentence-ending punctuation followed by
// whitespace. The whitespace stays attached to the preceding piece.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == i+1 {
			continue // mid-token punctuation, e.g. "3.14"
		}
		parts = append(parts, text[start:j])
		start = j
		i = j - 1
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// splitWordRuns cuts after each whitespace run so a piece is one word plus
// its trailing whitespace. Never splits mid-word.
func splitWordRuns(text string) []string {
	var parts []string
	start := 0
	i := 0
	for i < len(text) {
		for i < len(text) && !isSpace(text[i]) {
			i++
		}
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		parts = append(parts, text[start:i])
		start = i
	}
	return parts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
