package domain

import "time"

// Format identifies the declared file format of an uploaded document.
type Format string

const (
	FormatText Format = "TEXT"
	FormatPDF  Format = "PDF"
	FormatEPUB Format = "EPUB"
	FormatDOCX Format = "DOCX"
)

// IsSupported reports whether the format has a dedicated extractor.
// Unsupported formats still ingest, producing a single placeholder page.
func (f Format) IsSupported() bool {
	switch f {
	case FormatText, FormatPDF, FormatEPUB, FormatDOCX:
		return true
	}
	return false
}

// IngestStatus tracks a document through the ingestion pipeline.
type IngestStatus string

const (
	IngestPending    IngestStatus = "pending"
	IngestProcessing IngestStatus = "processing"
	IngestReady      IngestStatus = "ready"
	IngestFailed     IngestStatus = "failed"
)

// ConversionStatus tracks an optional PDF-to-EPUB conversion.
// The conversion lifecycle is independent of ingestion: a document can be
// ready for reading while its conversion is still running or was never requested.
type ConversionStatus string

const (
	ConversionNone       ConversionStatus = "none"
	ConversionPending    ConversionStatus = "pending"
	ConversionProcessing ConversionStatus = "processing"
	ConversionCompleted  ConversionStatus = "completed"
	ConversionFailed     ConversionStatus = "failed"
)

// MaxConversionErrorLen bounds the stored conversion failure reason.
const MaxConversionErrorLen = 500

// TruncateError caps a failure reason before it is written to the document.
func TruncateError(s string) string {
	if len(s) <= MaxConversionErrorLen {
		return s
	}
	return s[:MaxConversionErrorLen]
}

// Document represents one uploaded work tracked through ingestion and
// optional format conversion. Pages never outlive their document.
type Document struct {
	// ID is the unique identifier for this document
	ID string `json:"id"`

	// OwnerID is the user who uploaded the document
	OwnerID string `json:"owner_id"`

	// Title and Author are display metadata, also passed to the converter
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`

	// Format is the declared format of the original file
	Format Format `json:"format"`

	// StorageKey locates the original file in object storage
	StorageKey string `json:"storage_key"`

	// PDFKey and EPUBKey locate format variants, when present
	PDFKey  string `json:"pdf_key,omitempty"`
	EPUBKey string `json:"epub_key,omitempty"`

	// IngestStatus is the ingestion state machine position
	IngestStatus IngestStatus `json:"ingest_status"`

	// ConversionStatus is the conversion state machine position
	ConversionStatus ConversionStatus `json:"conversion_status"`

	// ConversionError holds the truncated failure reason for a failed conversion
	ConversionError string `json:"conversion_error,omitempty"`

	// TotalPages and TotalWords are set when ingestion reaches ready
	TotalPages int `json:"total_pages"`
	TotalWords int `json:"total_words"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a document record for a freshly uploaded file.
func NewDocument(id, ownerID, title, author string, format Format, storageKey string) *Document {
	now := time.Now()
	doc := &Document{
		ID:               id,
		OwnerID:          ownerID,
		Title:            title,
		Author:           author,
		Format:           format,
		StorageKey:       storageKey,
		IngestStatus:     IngestPending,
		ConversionStatus: ConversionNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if format == FormatPDF {
		doc.PDFKey = storageKey
	}
	return doc
}

// ConvertSourceKey returns the storage key conversion reads from.
func (d *Document) ConvertSourceKey() string {
	if d.PDFKey != "" {
		return d.PDFKey
	}
	return d.StorageKey
}

// Page is one unit of paginated text belonging to a document.
// Page numbers form a dense 1..TotalPages sequence with no gaps or duplicates.
type Page struct {
	DocumentID string `json:"document_id"`
	Number     int    `json:"number"`
	Content    string `json:"content"`
	WordCount  int    `json:"word_count"`
}
