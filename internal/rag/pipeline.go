package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/guardrail"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Pipeline wires the full answering flow: rewrite, embed, hybrid retrieval,
// rerank, prompt, generate, guard. It also owns ingestion and session chat.
type Pipeline struct {
	cfg       *config.Config
	store     *vectorstore.Store
	registry  storage.Storage
	chunker   *chunker.Chunker
	embedder  llm.Embedder
	generator llm.Generator
	guard     *guardrail.Engine
	memory    *memory.Store
	rewriter  *Rewriter
	reranker  *Reranker
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewPipeline assembles a pipeline from its collaborators. registry may be
// nil when no document bookkeeping is wanted (tests).
func NewPipeline(
	cfg *config.Config,
	store *vectorstore.Store,
	registry storage.Storage,
	embedder llm.Embedder,
	generator llm.Generator,
	guard *guardrail.Engine,
	mem *memory.Store,
	reg *metrics.Registry,
	logger *zap.Logger,
) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ck, err := chunker.New(cfg.Chunking.MaxChunkChars, cfg.Chunking.OverlapChars, cfg.Chunking.MinChunkSize)
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}
	defaults := llm.GenerateOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		TopK:        cfg.LLM.TopK,
	}
	// Every generation and embedding call the pipeline issues, including the
	// per-chunk rerank fan-out, runs under its own deadline.
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	embedder = llm.NewTimeoutEmbedder(embedder, timeout)
	generator = llm.NewTimeoutGenerator(generator, timeout)
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		chunker:   ck,
		embedder:  embedder,
		generator: generator,
		guard:     guard,
		memory:    mem,
		rewriter:  NewRewriter(generator, defaults),
		reranker:  NewReranker(generator, defaults, cfg.Retrieval.RerankConcurrency, logger),
		metrics:   reg,
		logger:    logger,
	}, nil
}

// genOptions merges per-request overrides with configured defaults.
func (p *Pipeline) genOptions(model string, temperature, topP float32, topK int) llm.GenerateOptions {
	opts := llm.GenerateOptions{
		Model:       p.cfg.LLM.Model,
		Temperature: p.cfg.LLM.Temperature,
		TopP:        p.cfg.LLM.TopP,
		TopK:        p.cfg.LLM.TopK,
	}
	if model != "" {
		opts.Model = model
	}
	if temperature > 0 {
		opts.Temperature = temperature
	}
	if topP > 0 {
		opts.TopP = topP
	}
	if topK > 0 {
		opts.TopK = topK
	}
	return opts
}

func (p *Pipeline) record(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.Record(stage, time.Since(start))
	}
}

// Ingest chunks text, embeds every chunk, appends all pairs to the vector
// store, persists the artifacts, and registers the document. Returns the
// document id (generated when absent) and the number of chunks produced.
// Re-ingesting an existing id replaces the document's chunks.
func (p *Pipeline) Ingest(ctx context.Context, text, docID, title, source string) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, promptError(fmt.Errorf("cannot ingest empty text"))
	}
	chunks := p.chunker.Chunk(text, docID)
	if len(chunks) == 0 {
		return "", 0, promptError(fmt.Errorf("text produced no chunks"))
	}
	docID = chunks[0].DocID

	if _, err := p.store.Delete(docID); err != nil {
		return "", 0, vectorStoreError(fmt.Errorf("replace document: %w", err))
	}

	for i, chunk := range chunks {
		emb, err := p.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return "", 0, embeddingError(fmt.Errorf("chunk %d: %w", i, err))
		}
		if err := p.store.Add(emb, chunk); err != nil {
			return "", 0, vectorStoreError(err)
		}
	}
	if err := p.store.Save(); err != nil {
		return "", 0, vectorStoreError(err)
	}

	if p.registry != nil {
		doc := &models.Document{ID: docID, Title: title, Source: source, ChunkCount: len(chunks)}
		if err := p.registry.Upsert(ctx, doc); err != nil {
			return "", 0, vectorStoreError(fmt.Errorf("register document: %w", err))
		}
	}

	p.logger.Info("document ingested",
		zap.String("doc_id", docID), zap.Int("chunks", len(chunks)), zap.String("source", source))
	return docID, len(chunks), nil
}

// AnswerQuery runs the full pipeline for one question and returns the guarded
// result. Every stage wraps its collaborator failure with the stage name;
// reranking never fails the query.
func (p *Pipeline) AnswerQuery(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	return p.answer(ctx, req, p.cfg.Retrieval.TopK)
}

// AnswerWithTopK runs the pipeline with an explicit retrieval depth. Used by
// evaluation and benchmark runs to sweep configurations without mutating the
// shared config.
func (p *Pipeline) AnswerWithTopK(ctx context.Context, question string, retrievalK int) (*models.QueryResult, error) {
	if retrievalK <= 0 {
		retrievalK = p.cfg.Retrieval.TopK
	}
	return p.answer(ctx, models.QueryRequest{Question: question}, retrievalK)
}

func (p *Pipeline) answer(ctx context.Context, req models.QueryRequest, retrievalK int) (*models.QueryResult, error) {
	opts := p.genOptions(req.Model, req.Temperature, req.TopP, req.TopK)

	start := time.Now()
	rewritten, err := p.rewriter.Rewrite(ctx, req.Question)
	if err != nil {
		return nil, err
	}
	p.record(metrics.StageRewrite, start)

	start = time.Now()
	queryEmb, err := p.embedder.Embed(ctx, rewritten)
	if err != nil {
		return nil, embeddingError(err)
	}
	p.record(metrics.StageEmbed, start)

	start = time.Now()
	retrieved, err := p.store.Search(queryEmb, retrievalK, rewritten)
	if err != nil {
		return nil, vectorStoreError(err)
	}
	p.record(metrics.StageSearch, start)

	start = time.Now()
	var ranked []models.ScoredChunk
	if p.cfg.Retrieval.RerankEnabledOrDefault() {
		ranked = p.reranker.Rerank(ctx, rewritten, retrieved)
	} else {
		ranked = make([]models.ScoredChunk, len(retrieved))
		for i, c := range retrieved {
			ranked[i] = models.ScoredChunk{Chunk: c}
		}
	}
	p.record(metrics.StageRerank, start)

	start = time.Now()
	texts := make([]string, len(ranked))
	sources := make([]models.Source, len(ranked))
	for i, sc := range ranked {
		texts[i] = sc.Text
		sources[i] = models.Source{DocID: sc.DocID, Text: sc.Text}
	}
	prompt := BuildPrompt(strings.Join(texts, "\n\n"), req.Question)
	p.record(metrics.StagePrompt, start)

	start = time.Now()
	raw, err := p.generator.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, llmError(err)
	}
	answer := UnescapeAnswer(raw)
	p.record(metrics.StageLLM, start)

	assessment, err := p.guard.Assess(ctx, answer, sources)
	if err != nil {
		return nil, embeddingError(err)
	}
	if p.metrics != nil {
		p.metrics.IncrementQueries()
	}

	return &models.QueryResult{
		Answer:        answer,
		Sources:       sources,
		Evaluation:    assessment.Evaluation,
		Hallucination: assessment.Hallucination,
		Semantic:      assessment.Semantic,
		Citations:     assessment.Citations,
		Safety:        assessment.Safety,
		Confidence:    assessment.Confidence,
		Decision:      assessment.Decision,
	}, nil
}

// Chat runs AnswerQuery inside a session: the user message and the guarded
// answer are appended to the session history, and the summarized history the
// answer saw is returned for inspection. History is informational; it does
// not feed the generation prompt.
func (p *Pipeline) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	p.memory.Add(req.SessionID, models.RoleUser, req.Message)

	history := memory.SummarizeWith(p.memory.Messages(req.SessionID), p.cfg.Memory.KeepRecent, p.cfg.Memory.SummaryMaxChars)
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = m.Role + ": " + m.Content
	}

	result, err := p.AnswerQuery(ctx, models.QueryRequest{
		Question:    req.Message,
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
	})
	if err != nil {
		return nil, err
	}

	p.memory.Add(req.SessionID, models.RoleAssistant, result.Answer)
	return &models.ChatResult{
		QueryResult:   *result,
		MemoryContext: strings.Join(lines, "\n"),
	}, nil
}

// Delete removes a document from the vector store and the registry. Returns
// the number of chunks removed.
func (p *Pipeline) Delete(ctx context.Context, docID string) (int, error) {
	removed, err := p.store.Delete(docID)
	if err != nil {
		return 0, vectorStoreError(err)
	}
	if p.registry != nil {
		if _, err := p.registry.Delete(ctx, docID); err != nil {
			return removed, vectorStoreError(fmt.Errorf("unregister document: %w", err))
		}
	}
	return removed, nil
}

// Memory exposes the session store for the HTTP layer.
func (p *Pipeline) Memory() *memory.Store {
	return p.memory
}

// Store exposes the vector store for introspection endpoints.
func (p *Pipeline) Store() *vectorstore.Store {
	return p.store
}
