package models

// Confidence labels shared by the lexical and semantic evaluators.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Evaluation is the lexical-overlap signal: how many answer tokens appear
// somewhere in the concatenated source text.
type Evaluation struct {
	OverlapScore int    `json:"overlap_score"`
	SourceCount  int    `json:"source_count"`
	Confidence   string `json:"confidence"`
}

// Semantic is the embedding-similarity signal between the answer and each
// source chunk.
type Semantic struct {
	ChunkScores []float64 `json:"chunk_scores"`
	Average     float64   `json:"average"`
	Max         float64   `json:"max"`
	Min         float64   `json:"min"`
	Confidence  string    `json:"confidence"`
}

// Hallucination is the similarity between the answer and all sources combined.
type Hallucination struct {
	Score        float64 `json:"score"`
	Hallucinated bool    `json:"hallucinated"`
}

// Citation maps one answer sentence to its best-supporting source document.
// SourceDocID is nil when no source scores above the alignment threshold.
type Citation struct {
	Sentence    string  `json:"sentence"`
	SourceDocID *string `json:"source_doc_id"`
	Score       float64 `json:"score"`
}

// Safety is the unsafe-content classification of the answer. Category and
// Score describe the highest-scoring unsafe category.
type Safety struct {
	Safe     bool    `json:"safe"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

// Confidence is the aggregate numeric confidence (informational, 0-100).
type Confidence struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// Decision is the final guardrail verdict. Reason is nil for a clean allow.
// FinalAnswer carries the refusal text when blocked, the warning-prefixed
// answer when allowed with a warning, or the answer verbatim otherwise.
type Decision struct {
	Allowed     bool    `json:"allowed"`
	Reason      *string `json:"reason"`
	FinalAnswer string  `json:"final_answer"`
}

// Assessment bundles every guardrail signal computed for one answer.
type Assessment struct {
	Evaluation    Evaluation    `json:"evaluation"`
	Semantic      Semantic      `json:"semantic"`
	Hallucination Hallucination `json:"hallucination"`
	Citations     []Citation    `json:"citations"`
	Safety        Safety        `json:"safety_check"`
	Confidence    Confidence    `json:"confidence"`
	Decision      Decision      `json:"decision"`
}
