package driven

import (
	"context"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

// DocumentStore handles persistence of documents and their pages.
type DocumentStore interface {
	// Create inserts a new document record.
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListByOwner retrieves documents belonging to a user with pagination.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error)

	// UpdateIngest records an ingestion state transition. Page and word
	// counts are only meaningful when status is ready.
	UpdateIngest(ctx context.Context, id string, status domain.IngestStatus, totalPages, totalWords int) error

	// UpdateConversion records a conversion state transition. epubKey is set
	// on completion; reason (already truncated) on failure. An empty epubKey
	// preserves the stored key, so claiming or failing a re-conversion never
	// discards a previously produced rendition.
	UpdateConversion(ctx context.Context, id string, status domain.ConversionStatus, epubKey, reason string) error

	// ReplacePages atomically deletes the document's existing pages, writes
	// the new set, and flips the document to ready with the given counts.
	// Either everything lands or nothing does: a reader must never observe
	// a ready document with a partial page set.
	ReplacePages(ctx context.Context, documentID string, pages []*domain.Page, totalWords int) error

	// GetPage retrieves one page by document and 1-based number.
	GetPage(ctx context.Context, documentID string, number int) (*domain.Page, error)

	// CountPages returns the number of pages stored for a document.
	CountPages(ctx context.Context, documentID string) (int, error)

	// Delete removes a document; its pages cascade.
	Delete(ctx context.Context, id string) error
}
