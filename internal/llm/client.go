// Package llm provides generation and embedding clients for an
// OpenAI-compatible endpoint, plus deterministic mocks for tests.
package llm

import "context"

// GenerateOptions are per-call generation parameters. TopK is carried for
// backends that support it; the OpenAI-compatible transport has no such
// parameter and ignores it.
type GenerateOptions struct {
	Model       string
	Temperature float32
	TopP        float32
	TopK        int
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
