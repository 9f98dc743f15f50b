package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the paper QA tool.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Split     SplitConfig     `yaml:"split"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Parser    ParserConfig    `yaml:"parser"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig holds index persistence configuration.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// SplitConfig holds hierarchical chunking configuration.
type SplitConfig struct {
	TierSizes []int `yaml:"tier_sizes"` // token targets, coarsest first
}

// RetrieveConfig holds retrieval and auto-merging configuration.
type RetrieveConfig struct {
	TopK           int     `yaml:"top_k"`
	MergeThreshold float64 `yaml:"merge_threshold"` // coverage ratio in (0,1]
	ContextBudget  int     `yaml:"context_budget"`  // prompt context tokens
	SnippetChars   int     `yaml:"snippet_chars"`   // source excerpt length
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai", "mock"
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// LLMConfig holds generation service configuration.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// ParserConfig holds layout parser configuration.
type ParserConfig struct {
	Provider  string `yaml:"provider"` // "llamaparse", "plain"
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir: "./storage",
		},
		Split: SplitConfig{
			TierSizes: []int{1024, 512, 256},
		},
		Retrieve: RetrieveConfig{
			TopK:           6,
			MergeThreshold: 0.5,
			ContextBudget:  3000,
			SnippetChars:   300,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			BatchSize:   100,
			Concurrency: 8,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Parser: ParserConfig{
			Provider:  "plain",
			BaseURL:   "https://api.cloud.llamaindex.ai",
			APIKeyEnv: "LLAMA_CLOUD_API_KEY",
		},
		Server: ServerConfig{
			Addr:        ":8000",
			MaxUploadMB: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for paperqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "paperqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".paperqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PaperDBPath returns the path of the index database for a paper id.
func PaperDBPath(storageDir, paperID string) string {
	return filepath.Join(storageDir, paperID+".db")
}

// EnsureStorageDir ensures the storage directory exists.
func EnsureStorageDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
