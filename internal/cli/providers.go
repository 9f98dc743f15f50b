package cli

import (
	"fmt"

	"paperqa/internal/adapter/embedding"
	"paperqa/internal/adapter/llm"
	"paperqa/internal/adapter/parser"
	"paperqa/internal/port"
	"paperqa/internal/usecase"
)

// buildRegistry wires the configured providers into a registry.
func buildRegistry() (*usecase.Registry, error) {
	var layoutParser port.LayoutParser
	var err error

	switch cfg.Parser.Provider {
	case "llamaparse":
		layoutParser, err = parser.NewLlamaParseClient(cfg.Parser.APIKeyEnv, cfg.Parser.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create layout parser: %w", err)
		}
	case "plain", "":
		layoutParser = parser.NewPlainParser()
	default:
		return nil, fmt.Errorf("unsupported parser provider: %s", cfg.Parser.Provider)
	}

	var embedder port.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	var generator port.Generator
	switch cfg.LLM.Provider {
	case "openai":
		generator, err = llm.NewOpenAIGenerator(cfg.LLM.APIKeyEnv, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
	case "mock":
		generator = llm.NewMockGenerator()
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}

	return usecase.NewRegistry(cfg, layoutParser, embedder, generator), nil
}
