package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

const scorePromptTemplate = `You are a relevance evaluator.

Question:
%s

Chunk:
%s

Task:
Rate how relevant this chunk is to answering the question.
Give a score from 0 (not relevant) to 100 (highly relevant).
Only return the number.
`

// Reranker scores each retrieved chunk against the query with one generation
// call per chunk. This is O(chunks) LLM calls, a deliberate latency/relevance
// tradeoff.
type Reranker struct {
	generator   llm.Generator
	opts        llm.GenerateOptions
	concurrency int
	logger      *zap.Logger
}

// NewReranker returns a reranker issuing at most concurrency scoring calls at
// a time.
func NewReranker(generator llm.Generator, opts llm.GenerateOptions, concurrency int, logger *zap.Logger) *Reranker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{generator: generator, opts: opts, concurrency: concurrency, logger: logger}
}

// Rerank returns chunks sorted descending by relevance score. The sort is
// stable, so ties keep the original retrieval order. Scoring never fails the
// query: an unscorable chunk degrades to 0.
func (r *Reranker) Rerank(ctx context.Context, question string, chunks []models.Chunk) []models.ScoredChunk {
	if len(chunks) == 0 {
		return []models.ScoredChunk{}
	}
	scored := make([]models.ScoredChunk, len(chunks))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c models.Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			scored[i] = models.ScoredChunk{Chunk: c, Score: r.scoreChunk(ctx, question, c.Text)}
		}(i, c)
	}
	wg.Wait()
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// scoreChunk parses an integer relevance rating out of the model's free-text
// response. No parseable digits, or a generation failure, scores 0.
func (r *Reranker) scoreChunk(ctx context.Context, question, chunk string) int {
	resp, err := r.generator.Generate(ctx, fmt.Sprintf(scorePromptTemplate, question, chunk), r.opts)
	if err != nil {
		r.logger.Debug("rerank scoring failed, chunk scored 0", zap.Error(err))
		return 0
	}
	return parseScore(resp)
}

// parseScore extracts the digits from resp and clamps the result to [0,100].
// Digit runs are capped at 9 characters so pathological responses cannot
// overflow the integer parse.
func parseScore(resp string) int {
	var digits strings.Builder
	for _, r := range resp {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			if digits.Len() >= 9 {
				break
			}
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	score, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
