// Package rag orchestrates the retrieval-augmented answering pipeline:
// rewrite, embed, retrieve, rerank, prompt, generate, guard.
package rag

import "fmt"

// Stage identifies the pipeline stage a failure originated in.
type Stage string

const (
	StageVectorStore Stage = "vectorstore"
	StageEmbedding   Stage = "embedding"
	// StageRerank is never raised: reranking degrades unscorable chunks to 0
	// instead of failing the query. The constant names the stage for callers
	// that switch over all stages.
	StageRerank Stage = "rerank"
	StagePrompt Stage = "prompt"
	StageLLM    Stage = "llm"
)

// PipelineError wraps a collaborator failure with the stage it occurred in.
// Handlers map it to a client error; anything else stays an opaque server
// error.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func vectorStoreError(err error) error { return &PipelineError{Stage: StageVectorStore, Err: err} }
func embeddingError(err error) error   { return &PipelineError{Stage: StageEmbedding, Err: err} }
func promptError(err error) error      { return &PipelineError{Stage: StagePrompt, Err: err} }
func llmError(err error) error         { return &PipelineError{Stage: StageLLM, Err: err} }
