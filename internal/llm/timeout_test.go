package llm

import (
	"context"
	"testing"
	"time"
)

type deadlineGen struct {
	hadDeadline bool
}

func (g *deadlineGen) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	_, g.hadDeadline = ctx.Deadline()
	return "ok", nil
}

type deadlineEmb struct {
	hadDeadline bool
}

func (e *deadlineEmb) Embed(ctx context.Context, text string) ([]float32, error) {
	_, e.hadDeadline = ctx.Deadline()
	return []float32{1}, nil
}

func (e *deadlineEmb) Dimensions() int { return 1 }

func TestTimeoutGeneratorSetsDeadline(t *testing.T) {
	inner := &deadlineGen{}
	g := NewTimeoutGenerator(inner, time.Minute)
	if _, err := g.Generate(context.Background(), "p", GenerateOptions{}); err != nil {
		t.Fatal(err)
	}
	if !inner.hadDeadline {
		t.Error("generate call carried no deadline")
	}
}

func TestTimeoutGeneratorZeroPassesThrough(t *testing.T) {
	inner := &deadlineGen{}
	if g := NewTimeoutGenerator(inner, 0); g != Generator(inner) {
		t.Error("zero timeout should return the generator unchanged")
	}
}

func TestTimeoutEmbedderSetsDeadline(t *testing.T) {
	inner := &deadlineEmb{}
	e := NewTimeoutEmbedder(inner, time.Minute)
	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if !inner.hadDeadline {
		t.Error("embed call carried no deadline")
	}
	if e.Dimensions() != 1 {
		t.Errorf("dimensions = %d", e.Dimensions())
	}
}

func TestTimeoutEmbedderZeroPassesThrough(t *testing.T) {
	inner := &deadlineEmb{}
	if e := NewTimeoutEmbedder(inner, 0); e != Embedder(inner) {
		t.Error("zero timeout should return the embedder unchanged")
	}
}
