package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// pageInsertBatch caps how many pages go into one multi-row INSERT.
const pageInsertBatch = 50

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new document record
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (
			id, owner_id, title, author, format, storage_key, pdf_key, epub_key,
			ingest_status, conversion_status, conversion_error,
			total_pages, total_words, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.Author,
		doc.Format,
		doc.StorageKey,
		doc.PDFKey,
		doc.EPUBKey,
		doc.IngestStatus,
		doc.ConversionStatus,
		doc.ConversionError,
		doc.TotalPages,
		doc.TotalWords,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert document: %w", err)
	}

	return nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := selectDocument + ` WHERE id = $1`
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// ListByOwner retrieves documents belonging to a user with pagination
func (s *DocumentStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	query := selectDocument + `
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// UpdateIngest records an ingestion state transition
func (s *DocumentStore) UpdateIngest(ctx context.Context, id string, status domain.IngestStatus, totalPages, totalWords int) error {
	query := `
		UPDATE documents
		SET ingest_status = $1, total_pages = $2, total_words = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, totalPages, totalWords, id)
	if err != nil {
		return fmt.Errorf("update ingest status: %w", err)
	}

	return requireRow(result)
}

// UpdateConversion records a conversion state transition. An empty
// epubKey preserves the stored key, so a re-conversion claim does not
// wipe a previously produced rendition.
func (s *DocumentStore) UpdateConversion(ctx context.Context, id string, status domain.ConversionStatus, epubKey, reason string) error {
	query := `
		UPDATE documents
		SET conversion_status = $1,
		    epub_key = COALESCE(NULLIF($2, ''), epub_key),
		    conversion_error = $3,
		    updated_at = NOW()
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, epubKey, reason, id)
	if err != nil {
		return fmt.Errorf("update conversion status: %w", err)
	}

	return requireRow(result)
}

// ReplacePages atomically swaps a document's page set and flips it to ready.
// One transaction: a reader never observes a ready document with a partial
// page set, and a re-ingest never leaves stale pages behind.
func (s *DocumentStore) ReplacePages(ctx context.Context, documentID string, pages []*domain.Page, totalWords int) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete pages: %w", err)
		}

		for start := 0; start < len(pages); start += pageInsertBatch {
			end := start + pageInsertBatch
			if end > len(pages) {
				end = len(pages)
			}
			if err := insertPages(ctx, tx, pages[start:end]); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET ingest_status = $1, total_pages = $2, total_words = $3, updated_at = NOW()
			WHERE id = $4
		`, domain.IngestReady, len(pages), totalWords, documentID)
		if err != nil {
			return fmt.Errorf("update document counts: %w", err)
		}

		return requireRow(result)
	})
}

func insertPages(ctx context.Context, tx *sql.Tx, pages []*domain.Page) error {
	if len(pages) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO pages (document_id, number, content, word_count) VALUES `)

	args := make([]any, 0, len(pages)*4)
	for i, p := range pages {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, p.DocumentID, p.Number, p.Content, p.WordCount)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert pages: %w", err)
	}

	return nil
}

// GetPage retrieves one page by document and 1-based number
func (s *DocumentStore) GetPage(ctx context.Context, documentID string, number int) (*domain.Page, error) {
	query := `
		SELECT document_id, number, content, word_count
		FROM pages
		WHERE document_id = $1 AND number = $2
	`

	var page domain.Page
	err := s.db.QueryRowContext(ctx, query, documentID, number).Scan(
		&page.DocumentID,
		&page.Number,
		&page.Content,
		&page.WordCount,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}

	return &page, nil
}

// CountPages returns the number of pages stored for a document
func (s *DocumentStore) CountPages(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return count, nil
}

// Delete removes a document; its pages cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return requireRow(result)
}

const selectDocument = `
	SELECT id, owner_id, title, author, format, storage_key, pdf_key, epub_key,
		   ingest_status, conversion_status, conversion_error,
		   total_pages, total_words, created_at, updated_at
	FROM documents
`

func scanDocument(row interface{ Scan(...any) error }) (*domain.Document, error) {
	var doc domain.Document

	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Title,
		&doc.Author,
		&doc.Format,
		&doc.StorageKey,
		&doc.PDFKey,
		&doc.EPUBKey,
		&doc.IngestStatus,
		&doc.ConversionStatus,
		&doc.ConversionError,
		&doc.TotalPages,
		&doc.TotalWords,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	return &doc, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
