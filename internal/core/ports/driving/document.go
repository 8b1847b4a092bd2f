package driving

import (
	"context"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

// RegisterRequest carries the metadata confirming a completed upload.
type RegisterRequest struct {
	Title      string        `json:"title"`
	Author     string        `json:"author,omitempty"`
	Format     domain.Format `json:"format"`
	StorageKey string        `json:"storage_key"`
}

// DocumentService is the front door of the processing pipeline: it owns
// document records and enqueues pipeline work. Every enqueue operation is
// safe to call while a job for the document is already outstanding; the
// second call is a no-op, never an error.
type DocumentService interface {
	// Register creates the document record for a confirmed upload and
	// enqueues its ingestion. queued is false when an ingest job for the
	// document was already outstanding.
	Register(ctx context.Context, ownerID string, req RegisterRequest) (doc *domain.Document, queued bool, err error)

	// Get retrieves a document owned by ownerID.
	Get(ctx context.Context, ownerID, id string) (*domain.Document, error)

	// List retrieves the caller's documents with pagination.
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error)

	// GetPage retrieves one page of an owned, ingested document.
	GetPage(ctx context.Context, ownerID, id string, number int) (*domain.Page, error)

	// Reprocess re-enqueues ingestion for a document in any state.
	Reprocess(ctx context.Context, ownerID, id string) (queued bool, err error)

	// RequestConversion enqueues a PDF-to-EPUB conversion. Returns
	// domain.ErrNotConvertible if the document has no PDF source.
	RequestConversion(ctx context.Context, ownerID, id string) (queued bool, err error)

	// Delete removes a document, its pages, and its stored files.
	Delete(ctx context.Context, ownerID, id string) error
}
