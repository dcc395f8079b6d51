package llm

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// gets the same unit-length vector, derived from the text hash.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum32())
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// MockGenerator is a scripted generator for tests. Responses are consumed in
// order; when they run out, Default is returned. Every prompt is recorded.
type MockGenerator struct {
	mu        sync.Mutex
	Responses []string
	Default   string
	Err       error
	Prompts   []string
}

// Generate pops the next scripted response, or returns Default.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		r := m.Responses[0]
		m.Responses = m.Responses[1:]
		return r, nil
	}
	return m.Default, nil
}

// EchoEmbedder embeds via a caller-supplied function. Useful when a test
// needs specific vectors for specific texts.
type EchoEmbedder struct {
	Dim int
	Fn  func(text string) []float32
}

// Embed returns Fn(text).
func (e *EchoEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.Fn(text), nil
}

// Dimensions returns the embedding dimension.
func (e *EchoEmbedder) Dimensions() int { return e.Dim }
