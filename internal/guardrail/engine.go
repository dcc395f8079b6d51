// Package guardrail evaluates generated answers against their retrieved
// sources and produces an allow/warn/block verdict from five independent
// signals: lexical overlap, semantic similarity, hallucination score,
// citation alignment, and a safety check.
package guardrail

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// Engine computes answer-quality signals. Embedding-backed signals share one
// embedder; the unsafe-category reference embeddings are computed once on
// first use and cached.
type Engine struct {
	embedder    llm.Embedder
	concurrency int
	logger      *zap.Logger

	mu         sync.Mutex
	safetyRefs [][]float32
}

// NewEngine returns a guardrail engine. concurrency bounds parallel embedding
// calls during citation alignment.
func NewEngine(embedder llm.Embedder, concurrency int, logger *zap.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{embedder: embedder, concurrency: concurrency, logger: logger}
}

// Assess runs every signal against (answer, sources) and combines them into
// the final decision and aggregate confidence.
func (e *Engine) Assess(ctx context.Context, answer string, sources []models.Source) (*models.Assessment, error) {
	evaluation := EvaluateAnswer(answer, sources)

	semantic, err := e.SemanticScore(ctx, answer, sources)
	if err != nil {
		return nil, fmt.Errorf("semantic score: %w", err)
	}
	hallucination, err := e.DetectHallucination(ctx, answer, sources)
	if err != nil {
		return nil, fmt.Errorf("detect hallucination: %w", err)
	}
	citations, err := e.AlignCitations(ctx, answer, sources)
	if err != nil {
		return nil, fmt.Errorf("align citations: %w", err)
	}
	safety, err := e.SafetyCheck(ctx, answer)
	if err != nil {
		return nil, fmt.Errorf("safety check: %w", err)
	}

	decision := Decide(answer, evaluation, hallucination, semantic, safety, citations)
	confidence := ComputeConfidence(evaluation, semantic, hallucination, citations, safety)

	if !decision.Allowed {
		e.logger.Info("answer blocked", zap.Stringp("reason", decision.Reason))
	} else if decision.Reason != nil {
		e.logger.Debug("answer allowed with warning", zap.Stringp("reason", decision.Reason))
	}

	return &models.Assessment{
		Evaluation:    evaluation,
		Semantic:      semantic,
		Hallucination: hallucination,
		Citations:     citations,
		Safety:        safety,
		Confidence:    confidence,
		Decision:      decision,
	}, nil
}
