package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
)

const rewritePromptTemplate = `Rewrite the following question so it becomes a better search query for a document-based retrieval system.

Guidelines:
- Add missing context.
- Expand abbreviations.
- Clarify vague terms.
- Keep the meaning the same.
- Do NOT answer the question.
- Return only the rewritten question.

Original question:
%s
`

// Rewriter expands a user question into a better retrieval query via one
// generation call.
type Rewriter struct {
	generator llm.Generator
	opts      llm.GenerateOptions
}

// NewRewriter returns a rewriter using generator with the given options.
func NewRewriter(generator llm.Generator, opts llm.GenerateOptions) *Rewriter {
	return &Rewriter{generator: generator, opts: opts}
}

// Rewrite returns the rewritten question. Generation failure surfaces as a
// prompt-stage pipeline error; retries belong to the generation collaborator,
// not here.
func (r *Rewriter) Rewrite(ctx context.Context, question string) (string, error) {
	out, err := r.generator.Generate(ctx, fmt.Sprintf(rewritePromptTemplate, question), r.opts)
	if err != nil {
		return "", promptError(fmt.Errorf("rewrite query: %w", err))
	}
	return strings.TrimSpace(out), nil
}
