package port

import "context"

// LayoutParser converts an uploaded document into structured plain text.
// Implementations may be slow; callers wait for completion before splitting.
type LayoutParser interface {
	// Parse extracts the text of the document. filename carries the original
	// name so the parser can pick a strategy by extension.
	Parse(ctx context.Context, filename string, data []byte) (string, error)
}
