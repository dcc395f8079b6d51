// Package models defines core data structures for chunks, sessions, queries, and evaluation signals.
package models

// Chunk is a contiguous, bounded-length slice of a document's text, the unit
// of embedding and retrieval. Immutable once created. ChunkIndex is contiguous
// per DocID starting at 0; offsets are character positions into the
// whitespace-normalized chunked corpus, non-decreasing across chunks of the
// same document.
type Chunk struct {
	DocID       string `json:"doc_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
	OffsetStart int    `json:"offset_start"`
	OffsetEnd   int    `json:"offset_end"`
}

// ScoredChunk is a chunk with a reranker relevance score (0-100).
type ScoredChunk struct {
	Chunk
	Score int `json:"score"`
}

// Source is the doc_id + text pair returned to callers alongside an answer.
type Source struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}
