package models

import "time"

// Document is a registry record for an ingested document. The document text
// itself exists only as the set of chunks sharing its DocID in the vector store.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
