// Package storage persists the document registry: which documents have been
// ingested, where they came from, and how many chunks each produced.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage is the document registry interface.
type Storage interface {
	// Upsert inserts or replaces a document record.
	Upsert(ctx context.Context, doc *models.Document) error
	// Get returns a document by id, or an error when unknown.
	Get(ctx context.Context, id string) (*models.Document, error)
	// List returns all documents, newest first.
	List(ctx context.Context) ([]*models.Document, error)
	// Delete removes a document record. Deleting an unknown id is not an
	// error; it reports false.
	Delete(ctx context.Context, id string) (bool, error)
	// Count returns the number of registered documents.
	Count(ctx context.Context) (int, error)
	// Close releases the underlying resources.
	Close() error
}
