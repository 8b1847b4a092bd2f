// Package extract turns raw uploaded bytes into ordered page texts.
//
// Each supported format has one extractor. The shared contract is that
// extraction never returns zero pages: inputs with no extractable text
// produce placeholder pages instead, so page-count fidelity is preserved
// and ingestion can always reach a ready state.
package extract

import (
	"github.com/folio-labs/folio-core/internal/core/domain"
)

// PageText is one extracted page, ordered but not yet numbered.
type PageText struct {
	Content   string
	WordCount int
}

// placeholderContent marks a page whose source had no extractable text.
const placeholderContent = "[This page contains non-text content]"

// Extractor converts a raw file into an ordered, non-empty page list.
type Extractor interface {
	Extract(data []byte) ([]PageText, error)
}

// ForFormat selects the extractor for a declared format. This is a closed
// set: adding a format means adding one extractor and one switch arm.
// Unknown formats get a fallback that emits a single placeholder page.
func ForFormat(format domain.Format) Extractor {
	switch format {
	case domain.FormatText:
		return &TextExtractor{}
	case domain.FormatPDF:
		return &PDFExtractor{}
	case domain.FormatEPUB:
		return &EPUBExtractor{}
	case domain.FormatDOCX:
		return &DOCXExtractor{}
	default:
		return &fallbackExtractor{}
	}
}

// fallbackExtractor handles formats without a real extractor. It still
// produces a valid single page rather than failing the job.
type fallbackExtractor struct{}

func (*fallbackExtractor) Extract(data []byte) ([]PageText, error) {
	return []PageText{{Content: placeholderContent, WordCount: 0}}, nil
}

func placeholderPage() PageText {
	return PageText{Content: placeholderContent, WordCount: 0}
}
