package models

// QueryRequest is a single-shot question against the indexed corpus.
// Zero-valued generation parameters fall back to configured defaults.
type QueryRequest struct {
	Question    string  `json:"question"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// ChatRequest is a session-scoped question.
type ChatRequest struct {
	SessionID   string  `json:"session_id"`
	Message     string  `json:"message"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// QueryResult is the full answer payload: the guarded answer, its sources,
// and every evaluation signal.
type QueryResult struct {
	Answer        string        `json:"answer"`
	Sources       []Source      `json:"sources"`
	Evaluation    Evaluation    `json:"evaluation"`
	Hallucination Hallucination `json:"hallucination"`
	Semantic      Semantic      `json:"semantic"`
	Citations     []Citation    `json:"citations"`
	Safety        Safety        `json:"safety_check"`
	Confidence    Confidence    `json:"confidence"`
	Decision      Decision      `json:"decision"`
}

// ChatResult is a QueryResult plus the session context the answer saw.
type ChatResult struct {
	QueryResult
	MemoryContext string `json:"memory_context"`
}

// IngestRequest is a raw-text indexing request.
type IngestRequest struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id,omitempty"`
	Title string `json:"title,omitempty"`
}
