package llm

import (
	"context"
	"time"
)

// NewTimeoutGenerator bounds every Generate call with its own deadline. A
// non-positive timeout returns the generator unchanged.
func NewTimeoutGenerator(g Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return g
	}
	return &timeoutGenerator{g: g, timeout: timeout}
}

type timeoutGenerator struct {
	g       Generator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.g.Generate(ctx, prompt, opts)
}

// NewTimeoutEmbedder bounds every Embed call with its own deadline. A
// non-positive timeout returns the embedder unchanged.
func NewTimeoutEmbedder(e Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return e
	}
	return &timeoutEmbedder{e: e, timeout: timeout}
}

type timeoutEmbedder struct {
	e       Embedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.e.Embed(ctx, text)
}

func (t *timeoutEmbedder) Dimensions() int {
	return t.e.Dimensions()
}
