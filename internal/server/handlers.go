package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/evaluation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
)

var serverStart = time.Now()

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question))
	result, err := s.pipeline.AnswerQuery(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleStream runs the full guarded pipeline first and then streams the
// final answer's tokens. The streamed text is always exactly the guarded
// answer; no second generation happens.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	result, err := s.pipeline.AnswerQuery(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	for _, token := range strings.SplitAfter(result.Decision.FinalAnswer, " ") {
		if _, err := io.WriteString(w, token); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}
	result, err := s.pipeline.Chat(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.pipeline.Memory().Reset(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "reset"})
}

func (s *Server) handleIndexText(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docID, chunks, err := s.pipeline.Ingest(r.Context(), req.Text, req.DocID, req.Title, "api")
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	if s.keyword != nil {
		if err := s.keyword.Index(r.Context(), docID, req.Title, req.Text); err != nil {
			s.logger.Warn("keyword indexing failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"doc_id": docID, "chunks": chunks, "status": "indexed"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	text, err := s.extractor.ExtractBytes(content, ext)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusBadRequest, "could not extract text from file")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	docID := r.FormValue("doc_id")
	if docID == "" {
		docID = uuid.NewString()
	}

	if dir := s.config.Storage.UploadsDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err == nil {
			dst := filepath.Join(dir, docID+ext)
			if err := os.WriteFile(dst, content, 0644); err != nil {
				s.logger.Warn("failed to keep upload copy", zap.String("path", dst), zap.Error(err))
			}
		}
	}

	docID, chunks, err := s.pipeline.Ingest(r.Context(), text, docID, title, "upload")
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	if s.keyword != nil {
		if err := s.keyword.Index(r.Context(), docID, title, text); err != nil {
			s.logger.Warn("keyword indexing failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"doc_id": docID, "title": title, "chunks": chunks, "status": "indexed"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotFound, "document search is disabled")
		return
	}
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	hits, err := s.keyword.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("document search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"hits": hits, "count": len(hits)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	chunks := s.pipeline.Store().ChunksByDoc(id)
	s.respondJSON(w, http.StatusOK, map[string]any{"document": doc, "chunks": chunks})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	removed, err := s.pipeline.Delete(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	if s.keyword != nil {
		if err := s.keyword.Delete(r.Context(), id); err != nil {
			s.logger.Warn("keyword delete failed", zap.String("doc_id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"doc_id": id, "removed_chunks": removed, "status": "deleted"})
}

func (s *Server) handleIndexInfo(w http.ResponseWriter, r *http.Request) {
	store := s.pipeline.Store()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"vectors":         store.Count(),
		"dimensions":      store.Dimensions(),
		"index_file_size": store.IndexFileSize(),
		"documents":       store.Documents(),
	})
}

func (s *Server) handleEvaluationRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopK int `json:"top_k"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	result, err := evaluation.RunEvaluation(r.Context(), s.evaluationRunner(), req.TopK)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBenchmarkRun(w http.ResponseWriter, r *http.Request) {
	results, err := evaluation.RunBenchmark(r.Context(), s.evaluationRunner())
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) evaluationRunner() evaluation.QueryFunc {
	return func(ctx context.Context, question string, topK int) (string, []models.Source, error) {
		result, err := s.pipeline.AnswerWithTopK(ctx, question, topK)
		if err != nil {
			return "", nil, err
		}
		return result.Answer, result.Sources, nil
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.metrics.Summary())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docCount, err := s.registry.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"documents":      docCount,
		"chunks":         s.pipeline.Store().Count(),
		"sessions":       s.pipeline.Memory().Sessions(),
		"uptime_seconds": int(time.Since(serverStart).Seconds()),
	})
}

// respondPipelineError maps stage-tagged pipeline failures to a client error
// and everything else to an opaque server error.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	var pe *rag.PipelineError
	if errors.As(err, &pe) {
		s.logger.Warn("pipeline error", zap.String("stage", string(pe.Stage)), zap.Error(pe.Err))
		s.respondError(w, http.StatusBadRequest, pe.Error())
		return
	}
	s.logger.Error("unhandled error", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
