package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/guardrail"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

const testDims = 16

// stubGen answers rewrite, rerank, and synthesis prompts deterministically.
type stubGen struct {
	answer string
}

func (g *stubGen) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	switch {
	case strings.Contains(prompt, "Rewrite the following question"):
		return "rewritten query", nil
	case strings.Contains(prompt, "relevance evaluator"):
		return "77", nil
	default:
		return g.answer, nil
	}
}

func newTestServer(t *testing.T, answer string) (*Server, chi.Router) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.LLM.Dimensions = testDims
	cfg.Storage.UploadsDir = filepath.Join(dir, "uploads")

	store, err := vectorstore.NewStore(filepath.Join(dir, "index.bin"), filepath.Join(dir, "meta.json"), testDims, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry, err := storage.NewSQLiteStorage(filepath.Join(dir, "docs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "kw.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	embedder := llm.NewMockEmbedder(testDims)
	guard := guardrail.NewEngine(embedder, 2, nil)
	reg := metrics.NewRegistry()
	pipeline, err := rag.NewPipeline(cfg, store, registry, embedder, &stubGen{answer: answer}, guard, memory.NewStore(), reg, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	srv := NewServer(pipeline, registry, kw, reg, cfg, zap.NewNop())
	return srv, srv.routes()
}

func postJSON(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func indexText(t *testing.T, router chi.Router, docID, title, text string) {
	t.Helper()
	rec := postJSON(t, router, "/api/index", map[string]string{"doc_id": docID, "title": title, "text": text})
	if rec.Code != http.StatusCreated {
		t.Fatalf("index status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleIndexAndQuery(t *testing.T) {
	_, router := newTestServer(t, "Items can be returned within 30 days.")
	indexText(t, router, "return_policy", "Return Policy",
		"Items can be returned within 30 days in original packaging for a full refund.")

	rec := postJSON(t, router, "/api/query", map[string]string{"question": "What is the return policy?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Answer   string `json:"answer"`
		Decision struct {
			FinalAnswer string `json:"final_answer"`
		} `json:"decision"`
		Sources []struct {
			DocID string `json:"doc_id"`
		} `json:"sources"`
	}
	decode(t, rec, &result)
	if result.Answer != "Items can be returned within 30 days." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) == 0 || result.Sources[0].DocID != "return_policy" {
		t.Errorf("sources = %v", result.Sources)
	}
	if result.Decision.FinalAnswer == "" {
		t.Error("decision missing final answer")
	}
}

func TestHandleQueryValidation(t *testing.T) {
	_, router := newTestServer(t, "x")
	rec := postJSON(t, router, "/api/query", map[string]string{"question": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{broken"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec2.Code)
	}
}

func TestHandleStreamReplaysGuardedAnswer(t *testing.T) {
	_, router := newTestServer(t, "Standard shipping takes 5 business days.")
	indexText(t, router, "shipping", "Shipping",
		"Standard shipping takes 5 business days anywhere in the country.")

	// First fetch the non-streamed result to know the guarded answer.
	queryRec := postJSON(t, router, "/api/query", map[string]string{"question": "How long is shipping?"})
	var result struct {
		Decision struct {
			FinalAnswer string `json:"final_answer"`
		} `json:"decision"`
	}
	decode(t, queryRec, &result)

	streamRec := postJSON(t, router, "/api/stream", map[string]string{"question": "How long is shipping?"})
	if streamRec.Code != http.StatusOK {
		t.Fatalf("stream status = %d", streamRec.Code)
	}
	// The streamed bytes are exactly the guarded answer, never a second
	// generation.
	if streamRec.Body.String() != result.Decision.FinalAnswer {
		t.Errorf("streamed %q, want %q", streamRec.Body.String(), result.Decision.FinalAnswer)
	}
}

func TestHandleChatAndSessionReset(t *testing.T) {
	_, router := newTestServer(t, "You can return items within 30 days.")
	indexText(t, router, "return_policy", "Return Policy",
		"Items can be returned within 30 days in original packaging.")

	rec := postJSON(t, router, "/api/chat", map[string]string{"session_id": "s1", "message": "Can I return this?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		MemoryContext string `json:"memory_context"`
	}
	decode(t, rec, &result)
	if !strings.Contains(result.MemoryContext, "user: Can I return this?") {
		t.Errorf("memory context = %q", result.MemoryContext)
	}

	del := httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, del)
	if delRec.Code != http.StatusOK {
		t.Errorf("reset status = %d", delRec.Code)
	}
	delRec2 := httptest.NewRecorder()
	router.ServeHTTP(delRec2, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil))
	if delRec2.Code != http.StatusNotFound {
		t.Errorf("second reset status = %d", delRec2.Code)
	}
}

func TestHandleDocumentLifecycle(t *testing.T) {
	_, router := newTestServer(t, "x")
	indexText(t, router, "d1", "Doc One", "Some document content about pelicans.")

	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	var list struct {
		Count int `json:"count"`
	}
	decode(t, listRec, &list)
	if list.Count != 1 {
		t.Errorf("document count = %d", list.Count)
	}

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/documents/d1", nil))
	if getRec.Code != http.StatusOK {
		t.Errorf("get status = %d", getRec.Code)
	}

	searchRec := httptest.NewRecorder()
	router.ServeHTTP(searchRec, httptest.NewRequest(http.MethodGet, "/api/documents/search?q=pelicans", nil))
	var hits struct {
		Count int `json:"count"`
	}
	decode(t, searchRec, &hits)
	if hits.Count != 1 {
		t.Errorf("search hits = %d", hits.Count)
	}

	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/api/documents/d1", nil))
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", delRec.Code)
	}

	getRec2 := httptest.NewRecorder()
	router.ServeHTTP(getRec2, httptest.NewRequest(http.MethodGet, "/api/documents/d1", nil))
	if getRec2.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", getRec2.Code)
	}
}

func TestHandleIndexInfoAndStatus(t *testing.T) {
	_, router := newTestServer(t, "x")
	indexText(t, router, "d1", "Doc", "Short content for the index.")

	infoRec := httptest.NewRecorder()
	router.ServeHTTP(infoRec, httptest.NewRequest(http.MethodGet, "/api/index/info", nil))
	var info struct {
		Vectors    int `json:"vectors"`
		Dimensions int `json:"dimensions"`
	}
	decode(t, infoRec, &info)
	if info.Vectors == 0 || info.Dimensions != testDims {
		t.Errorf("info = %+v", info)
	}

	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var status struct {
		Documents int `json:"documents"`
		Chunks    int `json:"chunks"`
	}
	decode(t, statusRec, &status)
	if status.Documents != 1 || status.Chunks == 0 {
		t.Errorf("status = %+v", status)
	}

	healthRec := httptest.NewRecorder()
	router.ServeHTTP(healthRec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if healthRec.Code != http.StatusOK {
		t.Errorf("health status = %d", healthRec.Code)
	}
}

func TestHandleMetricsAfterQuery(t *testing.T) {
	_, router := newTestServer(t, "answer text")
	indexText(t, router, "d1", "Doc", "Content with answer text inside.")
	postJSON(t, router, "/api/query", map[string]string{"question": "anything?"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	var summary map[string]any
	decode(t, rec, &summary)
	if summary["query_count"].(float64) != 1 {
		t.Errorf("query_count = %v", summary["query_count"])
	}
}

func TestHandleEvaluationRun(t *testing.T) {
	_, router := newTestServer(t, "30 days, good condition, original packaging, refund within 5 business days, "+
		"personal care products, final sale, digital products, custom-made, free standard shipping, orders above $50, "+
		"express shipping, 1-2 days, 1-2 business days, up to 3 days during peak")
	indexText(t, router, "return_policy", "Return Policy",
		"Items can be returned within 30 days in good condition and original packaging. Refund within 5 business days.")
	indexText(t, router, "shipping_policy", "Shipping Policy",
		"Free standard shipping on orders above $50. Express shipping takes 1-2 days.")

	rec := postJSON(t, router, "/api/evaluation/run", map[string]int{"top_k": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluation status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Samples []json.RawMessage `json:"samples"`
	}
	decode(t, rec, &result)
	if len(result.Samples) != 5 {
		t.Errorf("samples = %d", len(result.Samples))
	}
}

func TestHandleBenchmarkRun(t *testing.T) {
	_, router := newTestServer(t, "benchmark answer")
	indexText(t, router, "return_policy", "Return Policy", "Returns accepted within 30 days.")

	rec := postJSON(t, router, "/api/benchmark/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("benchmark status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Results []struct {
			Config string `json:"config"`
			TopK   int    `json:"top_k"`
		} `json:"results"`
	}
	decode(t, rec, &result)
	if len(result.Results) != 3 || result.Results[0].Config != "top_k_3" {
		t.Errorf("results = %+v", result.Results)
	}
}

func TestHandleUpload(t *testing.T) {
	_, router := newTestServer(t, "x")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("Plain text upload content about warranties.")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		DocID  string `json:"doc_id"`
		Chunks int    `json:"chunks"`
	}
	decode(t, rec, &result)
	if result.DocID == "" || result.Chunks == 0 {
		t.Errorf("upload result = %+v", result)
	}
}

func TestHandleUploadMissingFile(t *testing.T) {
	_, router := newTestServer(t, "x")
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("not multipart"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRespondPipelineErrorMapping(t *testing.T) {
	s, _ := newTestServer(t, "x")

	rec := httptest.NewRecorder()
	s.respondPipelineError(rec, &rag.PipelineError{Stage: rag.StageEmbedding, Err: fmt.Errorf("boom")})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pipeline error status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.respondPipelineError(rec, fmt.Errorf("some internal failure with secrets"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("opaque error status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secrets") {
		t.Error("internal detail leaked to the client")
	}
}
