package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator echoes the question and the amount of context it saw,
// for tests and offline runs.
type MockGenerator struct{}

// NewMockGenerator creates a mock generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned answer derived from the prompts.
func (g *MockGenerator) Generate(_ context.Context, _ string, userPrompt string) (string, error) {
	lines := strings.Count(userPrompt, "\n") + 1
	return fmt.Sprintf("mock answer (prompt: %d lines)", lines), nil
}

// ModelName returns the name of the model.
func (g *MockGenerator) ModelName() string {
	return "mock"
}
