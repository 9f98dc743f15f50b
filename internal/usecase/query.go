package usecase

import (
	"context"
	"fmt"
	"strings"

	"paperqa/config"
	"paperqa/internal/adapter/analyzer"
	"paperqa/internal/adapter/index"
	"paperqa/internal/adapter/store"
	"paperqa/internal/domain"
	"paperqa/internal/port"
)

const systemPrompt = `You are a research assistant answering questions about a single paper.
Answer using only the provided context. If the context does not contain
the answer, say so. Be concise and cite facts from the context.`

// Engine answers questions against one paper's document index. It is
// immutable after construction; the registry swaps whole engines on
// re-ingest.
type Engine struct {
	paper     domain.Paper
	store     *store.TreeStore
	index     *index.LeafIndex
	resolver  *AutoMergeResolver
	embedder  port.Embedder
	generator port.Generator
	tokenizer *analyzer.Tokenizer

	topK          int
	contextBudget int
	snippetChars  int
}

// NewEngine wires a query engine over a loaded document index.
func NewEngine(paper domain.Paper, ts *store.TreeStore, leafIndex *index.LeafIndex, embedder port.Embedder, generator port.Generator, tokenizer *analyzer.Tokenizer, cfg *config.Config) (*Engine, error) {
	resolver, err := NewAutoMergeResolver(ts, cfg.Retrieve.MergeThreshold)
	if err != nil {
		return nil, err
	}

	topK := cfg.Retrieve.TopK
	if topK <= 0 {
		topK = 6
	}

	return &Engine{
		paper:         paper,
		store:         ts,
		index:         leafIndex,
		resolver:      resolver,
		embedder:      embedder,
		generator:     generator,
		tokenizer:     tokenizer,
		topK:          topK,
		contextBudget: cfg.Retrieve.ContextBudget,
		snippetChars:  cfg.Retrieve.SnippetChars,
	}, nil
}

// Paper returns the paper this engine serves.
func (e *Engine) Paper() domain.Paper {
	return e.paper
}

// Answer embeds the question, retrieves and auto-merges context, and
// generates an answer with cited sources.
func (e *Engine) Answer(ctx context.Context, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, fmt.Errorf("question is empty")
	}

	embedded, err := e.embedder.Embed(ctx, []string{question})
	if err != nil {
		return domain.Answer{}, err
	}
	if len(embedded) == 0 {
		return domain.Answer{}, fmt.Errorf("%w: no query embedding returned", domain.ErrEmbedding)
	}

	hits, err := e.index.Search(embedded[0], e.topK)
	if err != nil {
		return domain.Answer{}, err
	}

	nodes, err := e.resolver.Resolve(hits)
	if err != nil {
		return domain.Answer{}, err
	}

	contextText, err := e.assembleContext(nodes)
	if err != nil {
		return domain.Answer{}, err
	}

	userPrompt := fmt.Sprintf("Context:\n---\n%s\n---\n\nQuestion: %s", contextText, question)
	answer, err := e.generator.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return domain.Answer{}, err
	}

	sources, err := e.sources(nodes)
	if err != nil {
		return domain.Answer{}, err
	}

	return domain.Answer{Text: answer, Sources: sources}, nil
}

// assembleContext joins resolved node texts, dropping the lowest-scored
// nodes first when the token budget would be exceeded. The highest-scored
// node is always kept.
func (e *Engine) assembleContext(nodes []domain.ResolvedNode) (string, error) {
	var parts []string
	used := 0
	for i, node := range nodes {
		c, err := e.store.Get(node.ChunkID)
		if err != nil {
			return "", err
		}
		tokens := e.tokenizer.CountTokens(c.Text)
		if i > 0 && e.contextBudget > 0 && used+tokens > e.contextBudget {
			break // nodes are sorted by score, so everything after is lower
		}
		parts = append(parts, c.Text)
		used += tokens
	}
	return strings.Join(parts, "\n\n"), nil
}

// sources builds the cited snippet list from the resolved nodes.
func (e *Engine) sources(nodes []domain.ResolvedNode) ([]domain.Source, error) {
	sources := make([]domain.Source, 0, len(nodes))
	for _, node := range nodes {
		c, err := e.store.Get(node.ChunkID)
		if err != nil {
			return nil, err
		}
		text := c.Text
		if e.snippetChars > 0 && len(text) > e.snippetChars {
			text = text[:e.snippetChars] + "..."
		}
		sources = append(sources, domain.Source{
			ChunkID: node.ChunkID,
			Score:   node.Score,
			Text:    text,
		})
	}
	return sources, nil
}
