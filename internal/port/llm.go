package port

import "context"

// Generator is a language model used to synthesize an answer from
// retrieved context. One call per query.
type Generator interface {
	// Generate produces text for the given system and user prompts.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
