package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
	"github.com/folio-labs/folio-core/internal/extract"
)

// IngestService runs the ingestion job: download the original file,
// extract and paginate it, and persist the page set. It is idempotent:
// re-running for the same document replaces the prior page set in full.
// One code path serves both first-run ingestion and explicit reprocessing.
type IngestService struct {
	store   driven.DocumentStore
	objects driven.ObjectStore
	logger  *slog.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(store driven.DocumentStore, objects driven.ObjectStore, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		store:   store,
		objects: objects,
		logger:  logger,
	}
}

// Run executes ingestion for one document. A missing document record is
// fatal and surfaces domain.ErrNotFound; the caller must not retry it.
// Any error after the document is claimed triggers a best-effort write of
// the failed status so the document never sits in processing forever.
func (s *IngestService) Run(ctx context.Context, documentID string) (err error) {
	logger := s.logger.With("document_id", documentID)

	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("ingest document %s: %w", documentID, err)
	}

	if err := s.store.UpdateIngest(ctx, documentID, domain.IngestProcessing, doc.TotalPages, doc.TotalWords); err != nil {
		return fmt.Errorf("claim document: %w", err)
	}

	// On any failure past the claim, leave the document in a terminal
	// failed state. This write is fire-and-forget: its own failure is
	// logged, never propagated.
	defer func() {
		if err == nil {
			return
		}
		if ferr := s.store.UpdateIngest(ctx, documentID, domain.IngestFailed, doc.TotalPages, doc.TotalWords); ferr != nil {
			logger.Error("failed to record ingest failure", "error", ferr)
		}
	}()

	data, err := s.objects.Download(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", doc.StorageKey, err)
	}

	pageTexts, err := extract.ForFormat(doc.Format).Extract(data)
	if err != nil {
		return fmt.Errorf("extract %s: %w", doc.Format, err)
	}

	pages := make([]*domain.Page, len(pageTexts))
	totalWords := 0
	for i, pt := range pageTexts {
		pages[i] = &domain.Page{
			DocumentID: documentID,
			Number:     i + 1,
			Content:    pt.Content,
			WordCount:  pt.WordCount,
		}
		totalWords += pt.WordCount
	}

	// Replace the prior page set and flip to ready in one atomic unit.
	if err := s.store.ReplacePages(ctx, documentID, pages, totalWords); err != nil {
		return fmt.Errorf("persist pages: %w", err)
	}

	logger.Info("document ingested",
		"format", doc.Format,
		"pages", len(pages),
		"words", totalWords,
	)
	return nil
}
