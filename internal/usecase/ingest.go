package usecase

import (
	"context"
	"fmt"
	"os"
	"time"

	"paperqa/config"
	"paperqa/internal/adapter/analyzer"
	"paperqa/internal/adapter/index"
	"paperqa/internal/adapter/splitter"
	"paperqa/internal/adapter/store"
	"paperqa/internal/domain"
	"paperqa/internal/port"
)

// ProgressFunc reports embedding progress during ingestion.
type ProgressFunc func(done, total int)

// IngestUseCase builds and persists a paper's document index: split the
// text into the chunk tree, embed the leaves, build the leaf index, and
// write everything to the paper's database file.
type IngestUseCase struct {
	parser    port.LayoutParser
	embedder  port.Embedder
	tokenizer *analyzer.Tokenizer
	cfg       *config.Config
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(parser port.LayoutParser, embedder port.Embedder, tokenizer *analyzer.Tokenizer, cfg *config.Config) *IngestUseCase {
	return &IngestUseCase{
		parser:    parser,
		embedder:  embedder,
		tokenizer: tokenizer,
		cfg:       cfg,
	}
}

// IngestFile parses an uploaded document and ingests the extracted text.
func (u *IngestUseCase) IngestFile(ctx context.Context, paperID, filename string, data []byte, progress ProgressFunc) (*store.TreeStore, *index.LeafIndex, domain.Paper, error) {
	text, err := u.parser.Parse(ctx, filename, data)
	if err != nil {
		return nil, nil, domain.Paper{}, err
	}
	return u.Ingest(ctx, paperID, filename, text, progress)
}

// Ingest builds the document index for raw text and persists it under
// the paper id, atomically replacing any prior index for that id. On any
// failure the prior persisted index is left untouched.
func (u *IngestUseCase) Ingest(ctx context.Context, paperID, name, text string, progress ProgressFunc) (*store.TreeStore, *index.LeafIndex, domain.Paper, error) {
	split, err := splitter.NewHierarchicalSplitter(u.cfg.Split.TierSizes, u.tokenizer)
	if err != nil {
		return nil, nil, domain.Paper{}, err
	}

	tree, err := split.Split(text)
	if err != nil {
		return nil, nil, domain.Paper{}, err
	}

	ts := store.NewTreeStore()
	if err := ts.InsertTree(tree); err != nil {
		return nil, nil, domain.Paper{}, err
	}

	leaves := ts.Leaves()
	if err := u.embedLeaves(ctx, ts, leaves, progress); err != nil {
		return nil, nil, domain.Paper{}, err
	}

	leafIndex := index.NewLeafIndex()
	if err := leafIndex.Build(ts.Leaves()); err != nil {
		return nil, nil, domain.Paper{}, err
	}

	paper := domain.Paper{
		ID:       paperID,
		Name:     name,
		Leaves:   len(leaves),
		Ingested: time.Now(),
	}
	if err := u.persist(paperID, ts, paper); err != nil {
		return nil, nil, domain.Paper{}, err
	}

	return ts, leafIndex, paper, nil
}

// embedLeaves embeds every leaf chunk, a bounded number of batches in
// flight at once. Any batch failure aborts the whole ingestion.
func (u *IngestUseCase) embedLeaves(ctx context.Context, ts *store.TreeStore, leaves []domain.Chunk, progress ProgressFunc) error {
	batchSize := u.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := u.cfg.Embedding.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	type batch struct {
		start int
		end   int
	}
	var batches []batch
	for i := 0; i < len(leaves); i += batchSize {
		end := i + batchSize
		if end > len(leaves) {
			end = len(leaves)
		}
		batches = append(batches, batch{start: i, end: end})
	}

	vectors := make([][]float32, len(leaves))
	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, len(batches))

	for _, b := range batches {
		sem <- struct{}{}
		go func(b batch) {
			defer func() { <-sem }()

			texts := make([]string, 0, b.end-b.start)
			for _, leaf := range leaves[b.start:b.end] {
				texts = append(texts, leaf.Text)
			}

			embedded, err := u.embedder.Embed(ctx, texts)
			if err != nil {
				errCh <- err
				return
			}
			if len(embedded) != len(texts) {
				errCh <- fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbedding, len(texts), len(embedded))
				return
			}
			copy(vectors[b.start:b.end], embedded)
			errCh <- nil
		}(b)
	}

	done := 0
	var firstErr error
	for range batches {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		done++
		if progress != nil && firstErr == nil {
			reported := done * batchSize
			if reported > len(leaves) {
				reported = len(leaves)
			}
			progress(reported, len(leaves))
		}
	}
	if firstErr != nil {
		return firstErr
	}

	for i, leaf := range leaves {
		if err := ts.AttachEmbedding(leaf.ID, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// persist writes the index to a temp file next to the final path, then
// renames it into place so a prior index is replaced atomically.
func (u *IngestUseCase) persist(paperID string, ts *store.TreeStore, paper domain.Paper) error {
	if err := config.EnsureStorageDir(u.cfg.Storage.Dir); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}

	finalPath := config.PaperDBPath(u.cfg.Storage.Dir, paperID)
	tmpPath := finalPath + ".tmp"
	os.Remove(tmpPath)

	db, err := store.NewBoltStore(tmpPath)
	if err != nil {
		return err
	}

	if err := db.PutTree(ts.Tree()); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.PutPaper(paper); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.SetSchemaInfo(&store.SchemaInfo{
		Version:    store.CurrentSchemaVersion,
		ConfigHash: store.ComputeConfigHash(u.cfg),
	}); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, finalPath)
}
