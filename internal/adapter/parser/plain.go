package parser

import (
	"context"
	"fmt"
	"unicode/utf8"

	"paperqa/internal/domain"
)

// PlainParser passes text documents through unchanged. It rejects binary
// input; PDFs need a layout-aware parser.
type PlainParser struct{}

// NewPlainParser creates a plain text parser.
func NewPlainParser() *PlainParser {
	return &PlainParser{}
}

// Parse returns the document bytes as text.
func (p *PlainParser) Parse(_ context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", domain.ErrParse, filename)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not plain text", domain.ErrParse, filename)
	}
	return string(data), nil
}
