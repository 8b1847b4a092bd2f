package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
	"github.com/folio-labs/folio-core/internal/core/ports/driving"
	"github.com/google/uuid"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService implements the DocumentService interface.
type documentService struct {
	store   driven.DocumentStore
	objects driven.ObjectStore
	queue   driven.JobQueue
	logger  *slog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	store driven.DocumentStore,
	objects driven.ObjectStore,
	queue driven.JobQueue,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		store:   store,
		objects: objects,
		queue:   queue,
		logger:  logger,
	}
}

// Register creates the document record for a confirmed upload and
// enqueues its ingestion.
func (s *documentService) Register(ctx context.Context, ownerID string, req driving.RegisterRequest) (*domain.Document, bool, error) {
	if ownerID == "" || req.Title == "" || req.StorageKey == "" {
		return nil, false, domain.ErrInvalidInput
	}

	doc := domain.NewDocument(uuid.NewString(), ownerID, req.Title, req.Author, req.Format, req.StorageKey)
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("create document: %w", err)
	}

	queued, err := s.queue.Enqueue(ctx, domain.NewIngestJob(doc))
	if err != nil {
		return nil, false, fmt.Errorf("enqueue ingest: %w", err)
	}

	s.logger.Info("document registered",
		"document_id", doc.ID,
		"format", doc.Format,
		"queued", queued,
	)
	return doc, queued, nil
}

// Get retrieves a document, enforcing ownership.
func (s *documentService) Get(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

// List retrieves the caller's documents.
func (s *documentService) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.store.ListByOwner(ctx, ownerID, limit, offset)
}

// GetPage retrieves one page of an owned document.
func (s *documentService) GetPage(ctx context.Context, ownerID, id string, number int) (*domain.Page, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.store.GetPage(ctx, id, number)
}

// Reprocess re-enqueues ingestion. Legal from any state, including a
// document stuck in processing; the idempotent enqueue prevents a second
// concurrent run while a job is genuinely outstanding.
func (s *documentService) Reprocess(ctx context.Context, ownerID, id string) (bool, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return false, err
	}

	queued, err := s.queue.Enqueue(ctx, domain.NewIngestJob(doc))
	if err != nil {
		return false, fmt.Errorf("enqueue ingest: %w", err)
	}
	if queued {
		// Best effort; the job sets processing itself when claimed.
		if err := s.store.UpdateIngest(ctx, id, domain.IngestPending, doc.TotalPages, doc.TotalWords); err != nil {
			s.logger.Warn("failed to mark document pending", "document_id", id, "error", err)
		}
	}
	return queued, nil
}

// RequestConversion enqueues a PDF-to-EPUB conversion.
func (s *documentService) RequestConversion(ctx context.Context, ownerID, id string) (bool, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	if doc.ConvertSourceKey() == "" || doc.Format != domain.FormatPDF {
		return false, domain.ErrNotConvertible
	}

	queued, err := s.queue.Enqueue(ctx, domain.NewConvertJob(doc))
	if err != nil {
		return false, fmt.Errorf("enqueue convert: %w", err)
	}
	if queued {
		if err := s.store.UpdateConversion(ctx, id, domain.ConversionPending, "", ""); err != nil {
			s.logger.Warn("failed to mark conversion pending", "document_id", id, "error", err)
		}
	}
	return queued, nil
}

// Delete removes the document record and its stored files. Page rows
// cascade with the document.
func (s *documentService) Delete(ctx context.Context, ownerID, id string) error {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	deleted := make(map[string]bool)
	for _, key := range []string{doc.StorageKey, doc.PDFKey, doc.EPUBKey} {
		if key == "" || deleted[key] {
			continue
		}
		deleted[key] = true
		if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to delete stored file", "document_id", id, "key", key, "error", err)
		}
	}
	return nil
}
