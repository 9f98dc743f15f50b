package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"paperqa/config"
)

// CurrentSchemaVersion is the current storage format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and the hash of the index-relevant
// configuration the index was built with.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo retrieves the schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				info.Version = 1
			}
		}
		if data := b.Get(keyConfigHash); data != nil {
			info.ConfigHash = string(data)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		data, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, data); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash computes a hash of the index-relevant configuration.
// A changed hash means the persisted index no longer matches how new
// indexes would be built and the paper should be re-ingested.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		TierSizes []int  `json:"tier_sizes"`
		EmbModel  string `json:"emb_model"`
		EmbDim    int    `json:"emb_dim"`
	}{
		TierSizes: cfg.Split.TierSizes,
		EmbModel:  cfg.Embedding.Model,
		EmbDim:    cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// CheckCompatible verifies the persisted index can be served with the
// given configuration.
func (s *BoltStore) CheckCompatible(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return fmt.Errorf("failed to get schema info: %w", err)
	}

	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("index created by newer version (v%d > v%d), re-ingest required", info.Version, CurrentSchemaVersion)
	}
	if hash := ComputeConfigHash(cfg); info.ConfigHash != "" && info.ConfigHash != hash {
		return fmt.Errorf("index configuration changed, re-ingest required")
	}
	return nil
}
