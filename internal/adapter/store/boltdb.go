package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"paperqa/internal/domain"
)

var (
	bucketChunks  = []byte("chunks")
	bucketBlobs   = []byte("blobs")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")

	keyRootIDs = []byte("root_ids")
	keyPaper   = []byte("paper")
)

// BoltStore persists one paper's chunk tree and leaf embeddings in a
// single BoltDB file. The file is the unit of durability: deleting a
// paper's index is deleting its file.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltStore opens (or creates) the index database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketChunks, bucketBlobs, bucketVectors, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type chunkMeta struct {
	Seq      int      `json:"seq"`
	Tier     int      `json:"tier"`
	ParentID string   `json:"parent_id,omitempty"`
	ChildIDs []string `json:"child_ids,omitempty"`
}

type paperMeta struct {
	Name     string `json:"name"`
	Leaves   int    `json:"leaves"`
	Ingested int64  `json:"ingested"`
}

// PutTree stores the whole chunk tree in one transaction. Chunk text goes
// to a separate blob bucket and leaf vectors to the vectors bucket.
func (s *BoltStore) PutTree(tree *domain.ChunkTree) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)
		vectorsBucket := tx.Bucket(bucketVectors)
		metaBucket := tx.Bucket(bucketMeta)

		for i, chunk := range tree.Chunks {
			meta := chunkMeta{
				Seq:      i,
				Tier:     chunk.Tier,
				ParentID: chunk.ParentID,
				ChildIDs: chunk.ChildIDs,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := chunksBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := blobsBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
				return err
			}
			if len(chunk.Embedding) > 0 {
				vecData, err := json.Marshal(chunk.Embedding)
				if err != nil {
					return err
				}
				if err := vectorsBucket.Put([]byte(chunk.ID), vecData); err != nil {
					return err
				}
			}
		}

		rootData, err := json.Marshal(tree.RootIDs)
		if err != nil {
			return err
		}
		return metaBucket.Put(keyRootIDs, rootData)
	})
}

// LoadTree reads the full chunk tree back in its original order.
func (s *BoltStore) LoadTree() (*domain.ChunkTree, error) {
	tree := &domain.ChunkTree{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)
		vectorsBucket := tx.Bucket(bucketVectors)
		metaBucket := tx.Bucket(bucketMeta)

		rootData := metaBucket.Get(keyRootIDs)
		if rootData == nil {
			return fmt.Errorf("index has no chunk tree")
		}
		if err := json.Unmarshal(rootData, &tree.RootIDs); err != nil {
			return err
		}

		type seqChunk struct {
			seq   int
			chunk domain.Chunk
		}
		var loaded []seqChunk

		err := chunksBucket.ForEach(func(k, v []byte) error {
			var meta chunkMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			chunk := domain.Chunk{
				ID:       string(k),
				Tier:     meta.Tier,
				ParentID: meta.ParentID,
				ChildIDs: meta.ChildIDs,
				Text:     string(blobsBucket.Get(k)),
			}
			if vecData := vectorsBucket.Get(k); vecData != nil {
				if err := json.Unmarshal(vecData, &chunk.Embedding); err != nil {
					return err
				}
			}
			loaded = append(loaded, seqChunk{seq: meta.Seq, chunk: chunk})
			return nil
		})
		if err != nil {
			return err
		}

		tree.Chunks = make([]domain.Chunk, len(loaded))
		for _, sc := range loaded {
			if sc.seq < 0 || sc.seq >= len(loaded) {
				return fmt.Errorf("corrupt chunk sequence %d", sc.seq)
			}
			tree.Chunks[sc.seq] = sc.chunk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// PutPaper stores the paper's descriptive metadata.
func (s *BoltStore) PutPaper(p domain.Paper) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := paperMeta{
			Name:     p.Name,
			Leaves:   p.Leaves,
			Ingested: p.Ingested.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyPaper, data)
	})
}

// GetPaper reads the paper's descriptive metadata.
func (s *BoltStore) GetPaper(id string) (domain.Paper, error) {
	var p domain.Paper
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyPaper)
		if data == nil {
			return fmt.Errorf("paper metadata not found")
		}
		var meta paperMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		p = domain.Paper{
			ID:       id,
			Name:     meta.Name,
			Leaves:   meta.Leaves,
			Ingested: time.Unix(meta.Ingested, 0),
		}
		return nil
	})
	return p, err
}
