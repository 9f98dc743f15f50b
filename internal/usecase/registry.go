package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"paperqa/config"
	"paperqa/internal/adapter/analyzer"
	"paperqa/internal/adapter/index"
	"paperqa/internal/adapter/store"
	"paperqa/internal/domain"
	"paperqa/internal/port"
)

// Registry is the process-scoped cache of loaded query engines, keyed by
// paper id. Engines are populated on ingest or on first query and
// invalidated on delete. Within one paper id, ingest, query, and delete
// are mutually exclusive via a per-paper lock; distinct papers never
// share state.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	locks   map[string]*sync.Mutex

	cfg       *config.Config
	embedder  port.Embedder
	generator port.Generator
	tokenizer *analyzer.Tokenizer
	ingest    *IngestUseCase
}

// NewRegistry creates a registry over the configured storage directory.
func NewRegistry(cfg *config.Config, parser port.LayoutParser, embedder port.Embedder, generator port.Generator) *Registry {
	tokenizer := analyzer.NewTokenizer()
	return &Registry{
		engines:   make(map[string]*Engine),
		locks:     make(map[string]*sync.Mutex),
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		tokenizer: tokenizer,
		ingest:    NewIngestUseCase(parser, embedder, tokenizer, cfg),
	}
}

// paperLock returns the exclusive lock for a paper id.
func (r *Registry) paperLock(paperID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[paperID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[paperID] = l
	}
	return l
}

// Ingest builds and persists a document index for raw text, replacing
// any prior index for the paper id.
func (r *Registry) Ingest(ctx context.Context, paperID, name, text string, progress ProgressFunc) (domain.Paper, error) {
	lock := r.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	ts, leafIndex, paper, err := r.ingest.Ingest(ctx, paperID, name, text, progress)
	if err != nil {
		return domain.Paper{}, err
	}
	return paper, r.cache(paperID, paper, ts, leafIndex)
}

// IngestFile parses an uploaded document and ingests the extracted text.
func (r *Registry) IngestFile(ctx context.Context, paperID, filename string, data []byte, progress ProgressFunc) (domain.Paper, error) {
	lock := r.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	ts, leafIndex, paper, err := r.ingest.IngestFile(ctx, paperID, filename, data, progress)
	if err != nil {
		return domain.Paper{}, err
	}
	return paper, r.cache(paperID, paper, ts, leafIndex)
}

func (r *Registry) cache(paperID string, paper domain.Paper, ts *store.TreeStore, leafIndex *index.LeafIndex) error {
	engine, err := NewEngine(paper, ts, leafIndex, r.embedder, r.generator, r.tokenizer, r.cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.engines[paperID] = engine
	r.mu.Unlock()
	return nil
}

// Answer runs a question against a paper's index, loading it from disk
// on first access.
func (r *Registry) Answer(ctx context.Context, paperID, question string) (domain.Answer, error) {
	lock := r.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	engine, err := r.engine(paperID)
	if err != nil {
		return domain.Answer{}, err
	}
	return engine.Answer(ctx, question)
}

// engine returns the cached engine for a paper, loading the persisted
// index when necessary. Caller holds the paper lock.
func (r *Registry) engine(paperID string) (*Engine, error) {
	r.mu.Lock()
	engine, ok := r.engines[paperID]
	r.mu.Unlock()
	if ok {
		return engine, nil
	}

	path := config.PaperDBPath(r.cfg.Storage.Dir, paperID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, paperID)
	}

	db, err := store.NewBoltStore(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.CheckCompatible(r.cfg); err != nil {
		return nil, err
	}

	tree, err := db.LoadTree()
	if err != nil {
		return nil, err
	}
	paper, err := db.GetPaper(paperID)
	if err != nil {
		return nil, err
	}

	ts := store.NewTreeStore()
	if err := ts.InsertTree(tree); err != nil {
		return nil, err
	}

	leafIndex := index.NewLeafIndex()
	if err := leafIndex.Build(ts.Leaves()); err != nil {
		return nil, err
	}

	engine, err = NewEngine(paper, ts, leafIndex, r.embedder, r.generator, r.tokenizer, r.cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.engines[paperID] = engine
	r.mu.Unlock()
	return engine, nil
}

// Load ensures a paper's index is loaded into the cache without
// querying it.
func (r *Registry) Load(paperID string) error {
	lock := r.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	_, err := r.engine(paperID)
	return err
}

// Delete removes a paper's index: the cached engine and the database
// file go together, so a failed deletion never leaves a queryable
// half-state.
func (r *Registry) Delete(paperID string) error {
	lock := r.paperLock(paperID)
	lock.Lock()
	defer lock.Unlock()

	path := config.PaperDBPath(r.cfg.Storage.Dir, paperID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, paperID)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}

	r.mu.Lock()
	delete(r.engines, paperID)
	r.mu.Unlock()
	return nil
}

// List returns the ids of all persisted document indexes.
func (r *Registry) List() ([]domain.Paper, error) {
	entries, err := os.ReadDir(r.cfg.Storage.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var papers []domain.Paper
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".db")
		papers = append(papers, domain.Paper{
			ID:   id,
			Name: prettyName(id),
		})
	}
	return papers, nil
}

// prettyName turns a paper id into a display name, the way the upload
// handler derives ids from filenames.
func prettyName(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// PaperIDFromFilename derives a paper id from an uploaded filename.
func PaperIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.ReplaceAll(base, " ", "_"))
}
